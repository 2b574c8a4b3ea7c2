package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"rentacar/internal/catalog"
	"rentacar/internal/domain"
	"rentacar/internal/models"

	"github.com/rs/zerolog"
)

// AdminVerifier re-checks administrator rights against the user store.
type AdminVerifier interface {
	RequireAdmin(ctx context.Context) (*models.User, error)
}

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// CarService serves the catalog from a short-lived in-memory copy of the
// cars table.
type CarService struct {
	repo          domain.CarRepository
	images        domain.ImageStore
	ttl           time.Duration
	featuredLimit int
	logger        *zerolog.Logger
	now           func() time.Time

	mu       sync.RWMutex
	cars     []*models.Car
	carsMap  map[int64]*models.Car
	loadedAt time.Time
}

func NewCarService(repo domain.CarRepository, images domain.ImageStore, featuredLimit int, logger *zerolog.Logger) *CarService {
	if featuredLimit <= 0 {
		featuredLimit = models.DefaultFeaturedLimit
	}
	return &CarService{
		repo:          repo,
		images:        images,
		ttl:           models.CatalogCacheTTL * time.Second,
		featuredLimit: featuredLimit,
		logger:        logger,
		now:           time.Now,
		carsMap:       make(map[int64]*models.Car),
	}
}

func (s *CarService) snapshot() ([]*models.Car, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loadedAt.IsZero() || s.now().Sub(s.loadedAt) > s.ttl {
		return nil, false
	}
	return s.cars, true
}

func (s *CarService) all(ctx context.Context) ([]*models.Car, error) {
	if cars, ok := s.snapshot(); ok {
		return cars, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	cars, _ := s.snapshot()
	return cars, nil
}

// List filters and sorts the whole catalog.
func (s *CarService) List(ctx context.Context, f catalog.Filter) ([]*models.Car, error) {
	cars, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Apply(cars, f), nil
}

func (s *CarService) Brands(ctx context.Context) ([]string, error) {
	cars, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Brands(cars), nil
}

func (s *CarService) Get(ctx context.Context, id int64) (*models.Car, error) {
	s.mu.RLock()
	car, ok := s.carsMap[id]
	fresh := !s.loadedAt.IsZero() && s.now().Sub(s.loadedAt) <= s.ttl
	s.mu.RUnlock()
	if ok && fresh {
		c := *car
		return &c, nil
	}

	car, err := s.repo.GetCarByID(ctx, id)
	if err != nil {
		return nil, domain.Persistence(err, "could not load car")
	}
	return car, nil
}

// Featured returns featured cars that can be booked, at most limit of them.
func (s *CarService) Featured(ctx context.Context, limit int) ([]*models.Car, error) {
	if limit <= 0 {
		limit = s.featuredLimit
	}
	cars, err := s.repo.GetFeaturedCars(ctx, limit)
	if err != nil {
		return nil, domain.Persistence(err, "could not load featured cars")
	}
	return cars, nil
}

func prepareCar(car *models.Car) error {
	car.Normalize()
	if err := car.Validate(); err != nil {
		return domain.Validation("%s", strings.ReplaceAll(err.Error(), "\n", "; "))
	}
	return nil
}

func (s *CarService) Create(ctx context.Context, v AdminVerifier, car *models.Car) error {
	if _, err := v.RequireAdmin(ctx); err != nil {
		return err
	}
	if err := prepareCar(car); err != nil {
		return err
	}
	if err := s.repo.CreateCar(ctx, car); err != nil {
		return domain.Persistence(err, "could not save car")
	}
	s.Invalidate()
	s.logger.Info().Int64("car_id", car.ID).Str("name", car.Name).Msg("car created")
	return nil
}

func (s *CarService) Update(ctx context.Context, v AdminVerifier, car *models.Car) error {
	if _, err := v.RequireAdmin(ctx); err != nil {
		return err
	}
	if err := prepareCar(car); err != nil {
		return err
	}
	if err := s.repo.UpdateCar(ctx, car); err != nil {
		return domain.Persistence(err, "could not save car")
	}
	s.Invalidate()
	return nil
}

func (s *CarService) Delete(ctx context.Context, v AdminVerifier, id int64) error {
	if _, err := v.RequireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteCar(ctx, id); err != nil {
		return domain.Persistence(err, "could not delete car")
	}
	s.Invalidate()
	s.logger.Info().Int64("car_id", id).Msg("car deleted")
	return nil
}

// UploadImage stores an image and appends its URL to the car.
func (s *CarService) UploadImage(ctx context.Context, v AdminVerifier, carID int64, filename string, r io.Reader) (*models.Car, error) {
	if _, err := v.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, domain.Validation("image uploads are disabled")
	}
	if !imageExtensions[strings.ToLower(filepath.Ext(filename))] {
		return nil, domain.Validation("unsupported image type %q", filepath.Ext(filename))
	}
	if _, err := s.repo.GetCarByID(ctx, carID); err != nil {
		return nil, domain.Persistence(err, "could not load car")
	}

	url, err := s.images.UploadImage(ctx, carID, filename, r)
	if err != nil {
		return nil, domain.Persistence(err, "could not upload image")
	}
	car, err := s.repo.AddCarImage(ctx, carID, url)
	if err != nil {
		if derr := s.images.DeleteImage(context.WithoutCancel(ctx), url); derr != nil {
			s.logger.Warn().Err(derr).Int64("car_id", carID).Str("url", url).Msg("orphaned image left in storage")
		}
		return nil, domain.Persistence(err, "could not attach image")
	}
	s.Invalidate()
	s.logger.Info().Int64("car_id", carID).Str("url", url).Msg("car image uploaded")
	return car, nil
}

// Invalidate forces the next read to reload the catalog.
func (s *CarService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadedAt = time.Time{}
}

func (s *CarService) Refresh(ctx context.Context) error {
	cars, err := s.repo.GetAllCars(ctx)
	if err != nil {
		return domain.Persistence(err, "could not load cars")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cars = cars
	s.carsMap = make(map[int64]*models.Car, len(cars))
	for _, car := range cars {
		s.carsMap[car.ID] = car
	}
	s.loadedAt = s.now()
	return nil
}

// Seed inserts cars when the catalog is empty. Invalid records are skipped.
func (s *CarService) Seed(ctx context.Context, cars []*models.Car) (int, error) {
	existing, err := s.repo.GetAllCars(ctx)
	if err != nil {
		return 0, domain.Persistence(err, "could not load cars")
	}
	if len(existing) > 0 {
		return 0, nil
	}

	added := 0
	for _, car := range cars {
		if err := prepareCar(car); err != nil {
			s.logger.Warn().Err(err).Str("name", car.Name).Msg("skipping invalid seed car")
			continue
		}
		if err := s.repo.CreateCar(ctx, car); err != nil {
			return added, domain.Persistence(err, "could not seed cars")
		}
		added++
	}
	s.Invalidate()
	return added, nil
}
