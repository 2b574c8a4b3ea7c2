package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"rentacar/internal/catalog"
	"rentacar/internal/domain"
	"rentacar/internal/export"
	"rentacar/internal/models"
	"rentacar/internal/pricing"
	"rentacar/internal/service"
)

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
	Warning   string       `json:"warning,omitempty"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Store.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// signIn runs fn on a fresh client and, when an identity results, tracks the
// client and issues its token. A partial cache load still signs in.
func (s *HTTPServer) signIn(w http.ResponseWriter, r *http.Request, code int, fn func(*service.Client) (*models.User, error)) {
	c := s.svc.Registry.Open()
	user, err := fn(c)
	var partial *domain.PartialLoadError
	if err != nil && !errors.As(err, &partial) {
		s.writeDomainError(w, r, err)
		return
	}

	token, exp, terr := s.tokens.Issue(user.ID, c.ID(), string(user.Role))
	if terr != nil {
		c.Logout(r.Context())
		s.writeDomainError(w, r, terr)
		return
	}
	s.svc.Registry.Add(c)

	resp := authResponse{Token: token, ExpiresAt: exp, User: user}
	if partial != nil {
		resp.Warning = domain.UserMessage(partial)
	}
	writeJSON(w, code, resp)
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var p service.Profile
	if !decodeJSON(w, r, &p) {
		return
	}
	s.signIn(w, r, http.StatusCreated, func(c *service.Client) (*models.User, error) {
		return c.Register(r.Context(), p)
	})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	s.signIn(w, r, http.StatusOK, func(c *service.Client) (*models.User, error) {
		return c.Login(r.Context(), body.Email, body.Password)
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request, c *service.Client) {
	s.svc.Registry.Remove(r.Context(), c.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, c *service.Client) {
	writeJSON(w, http.StatusOK, requestUser(r))
}

func (s *HTTPServer) handleUpdateMe(w http.ResponseWriter, r *http.Request, c *service.Client) {
	var patch service.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	user, err := c.Session.UpdateProfile(r.Context(), patch)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleCars(w http.ResponseWriter, r *http.Request) {
	filter := catalog.ParseFilter(r.URL.Query())
	cars, err := s.svc.Cars.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	brands, err := s.svc.Cars.Brands(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cars":           cars,
		"total":          len(cars),
		"active_filters": filter.ActiveCount(),
		"brands":         brands,
	})
}

func (s *HTTPServer) handleFeatured(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cars, err := s.svc.Cars.Featured(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cars": cars})
}

func (s *HTTPServer) handleCar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	car, err := s.svc.Cars.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	start, err := pricing.ParseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := pricing.ParseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	withDriver, _ := strconv.ParseBool(q.Get("with_driver"))

	// quoting needs no identity
	_, quote, err := s.svc.Registry.Open().Bookings.Quote(r.Context(), id, start, end, withDriver)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request, c *service.Client) {
	list, err := c.Bookings.ListForUser(r.Context(), requestUser(r).ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

type bookingBody struct {
	CarID      int64  `json:"car_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	WithDriver bool   `json:"with_driver"`
	Notes      string `json:"notes"`
}

func (b bookingBody) request() (service.BookingRequest, error) {
	start, err := pricing.ParseDate(b.StartDate)
	if err != nil {
		return service.BookingRequest{}, domain.Validation("pick-up date: %v", err)
	}
	end, err := pricing.ParseDate(b.EndDate)
	if err != nil {
		return service.BookingRequest{}, domain.Validation("return date: %v", err)
	}
	return service.BookingRequest{
		CarID:      b.CarID,
		StartDate:  start,
		EndDate:    end,
		WithDriver: b.WithDriver,
		Notes:      b.Notes,
	}, nil
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request, c *service.Client) {
	var body bookingBody
	if !decodeJSON(w, r, &body) {
		return
	}
	req, err := body.request()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	booking, err := c.Bookings.Create(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	booking, err := c.Bookings.Cancel(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleFavorites(w http.ResponseWriter, r *http.Request, c *service.Client) {
	cars, err := c.Favorites.Cars(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cars": cars, "ids": c.Favorites.List()})
}

func (s *HTTPServer) handleToggleFavorite(w http.ResponseWriter, r *http.Request, c *service.Client) {
	carID, ok := pathID(w, r, "carID")
	if !ok {
		return
	}
	favorited, err := c.Favorites.Toggle(r.Context(), carID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"car_id": carID, "favorited": favorited})
}

func (s *HTTPServer) handleLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.svc.Admin.Locations(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

func (s *HTTPServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Admin.Settings(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *HTTPServer) handleAdminBookings(w http.ResponseWriter, r *http.Request, c *service.Client) {
	list, err := c.Bookings.ListAll(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request, c *service.Client) {
	list, err := c.Bookings.ListAll(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	now := time.Now()
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(now)))
	if err := export.WriteBookings(w, list, now); err != nil {
		s.log.Error().Err(err).Msg("bookings export failed")
	}
}

func (s *HTTPServer) handleBookingStatus(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	next, valid := models.ParseBookingStatus(body.Status)
	if !valid {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown booking status %q", body.Status))
		return
	}
	booking, err := c.Bookings.UpdateStatus(r.Context(), id, next)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleBookingPayment(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		PaymentStatus string `json:"payment_status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	booking, err := c.Bookings.UpdatePaymentStatus(r.Context(), id, models.PaymentStatus(body.PaymentStatus))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := c.Bookings.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request, c *service.Client) {
	stats, err := c.Bookings.Stats(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleCreateCar(w http.ResponseWriter, r *http.Request, c *service.Client) {
	var car models.Car
	if !decodeJSON(w, r, &car) {
		return
	}
	car.ID = 0
	if err := s.svc.Cars.Create(r.Context(), c.Session, &car); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &car)
}

func (s *HTTPServer) handleUpdateCar(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var car models.Car
	if !decodeJSON(w, r, &car) {
		return
	}
	car.ID = id
	if err := s.svc.Cars.Update(r.Context(), c.Session, &car); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &car)
}

func (s *HTTPServer) handleDeleteCar(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.svc.Cars.Delete(r.Context(), c.Session, id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUploadImage(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.HTTP.MaxUploadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	car, err := s.svc.Cars.UploadImage(r.Context(), c.Session, id, header.Filename, file)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, car)
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, c *service.Client) {
	users, err := s.svc.Users.GetAllUsers(r.Context(), c.Session)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *HTTPServer) handleUser(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := s.svc.Users.GetUserByID(r.Context(), c.Session, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var patch service.UserAdminPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	user, err := s.svc.Users.UpdateUser(r.Context(), c.Session, id, patch)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.svc.Users.DeleteUser(r.Context(), c.Session, id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCreateLocation(w http.ResponseWriter, r *http.Request, c *service.Client) {
	var loc models.Location
	if !decodeJSON(w, r, &loc) {
		return
	}
	loc.ID = 0
	if err := s.svc.Admin.CreateLocation(r.Context(), c.Session, &loc); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &loc)
}

func (s *HTTPServer) handleUpdateLocation(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var loc models.Location
	if !decodeJSON(w, r, &loc) {
		return
	}
	loc.ID = id
	if err := s.svc.Admin.UpdateLocation(r.Context(), c.Session, &loc); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &loc)
}

func (s *HTTPServer) handleDeleteLocation(w http.ResponseWriter, r *http.Request, c *service.Client) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.svc.Admin.DeleteLocation(r.Context(), c.Session, id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request, c *service.Client) {
	var st models.Settings
	if !decodeJSON(w, r, &st) {
		return
	}
	if err := s.svc.Admin.UpdateSettings(r.Context(), c.Session, &st); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &st)
}
