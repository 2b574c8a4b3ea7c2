package service

import (
	"context"
	"net/mail"
	"strings"

	"rentacar/internal/domain"
	"rentacar/internal/models"

	"github.com/rs/zerolog"
)

// AdminService manages pickup locations and site settings.
type AdminService struct {
	locations domain.LocationRepository
	settings  domain.SettingsRepository
	logger    *zerolog.Logger
}

func NewAdminService(store domain.Store, logger *zerolog.Logger) *AdminService {
	return &AdminService{
		locations: store,
		settings:  store,
		logger:    logger,
	}
}

func (s *AdminService) Locations(ctx context.Context) ([]*models.Location, error) {
	locs, err := s.locations.GetLocations(ctx)
	if err != nil {
		return nil, domain.Persistence(err, "could not load locations")
	}
	return locs, nil
}

func prepareLocation(loc *models.Location) error {
	loc.Name = strings.TrimSpace(loc.Name)
	loc.Address = strings.TrimSpace(loc.Address)
	loc.City = strings.TrimSpace(loc.City)
	if loc.Name == "" {
		return domain.Validation("location name is required")
	}
	return nil
}

func (s *AdminService) CreateLocation(ctx context.Context, v AdminVerifier, loc *models.Location) error {
	if _, err := v.RequireAdmin(ctx); err != nil {
		return err
	}
	if err := prepareLocation(loc); err != nil {
		return err
	}
	if err := s.locations.CreateLocation(ctx, loc); err != nil {
		return domain.Persistence(err, "could not save location")
	}
	return nil
}

func (s *AdminService) UpdateLocation(ctx context.Context, v AdminVerifier, loc *models.Location) error {
	if _, err := v.RequireAdmin(ctx); err != nil {
		return err
	}
	if err := prepareLocation(loc); err != nil {
		return err
	}
	if err := s.locations.UpdateLocation(ctx, loc); err != nil {
		return domain.Persistence(err, "could not save location")
	}
	return nil
}

func (s *AdminService) DeleteLocation(ctx context.Context, v AdminVerifier, id int64) error {
	if _, err := v.RequireAdmin(ctx); err != nil {
		return err
	}
	if err := s.locations.DeleteLocation(ctx, id); err != nil {
		return domain.Persistence(err, "could not delete location")
	}
	return nil
}

func (s *AdminService) Settings(ctx context.Context) (*models.Settings, error) {
	st, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, domain.Persistence(err, "could not load settings")
	}
	return st, nil
}

func (s *AdminService) UpdateSettings(ctx context.Context, v AdminVerifier, st *models.Settings) error {
	admin, err := v.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	st.SiteName = strings.TrimSpace(st.SiteName)
	st.ContactEmail = strings.TrimSpace(st.ContactEmail)
	if st.DriverFeePerDay < 0 {
		return domain.Validation("driver fee must not be negative")
	}
	if st.ContactEmail != "" {
		if _, err := mail.ParseAddress(st.ContactEmail); err != nil {
			return domain.Validation("contact email is not valid")
		}
	}
	if err := s.settings.UpdateSettings(ctx, st); err != nil {
		return domain.Persistence(err, "could not save settings")
	}
	s.logger.Info().Int64("admin_id", admin.ID).Int64("driver_fee_per_day", st.DriverFeePerDay).Msg("settings updated")
	return nil
}
