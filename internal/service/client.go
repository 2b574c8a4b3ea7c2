package service

import (
	"context"
	"sync"
	"time"

	"rentacar/internal/domain"
	"rentacar/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options tunes the managers of every client context.
type Options struct {
	Session          SessionOptions
	DefaultDriverFee int64
}

// Dependencies are the collaborators shared by all client contexts.
type Dependencies struct {
	Store    domain.Store
	Sessions domain.SessionRepository
	Events   domain.EventPublisher
	Options  Options
}

// Client is one client context: an identity with its booking and
// favorite caches.
type Client struct {
	Session   *SessionManager
	Bookings  *BookingManager
	Favorites *FavoriteManager
	logger    *zerolog.Logger
}

func NewClient(id string, deps Dependencies, logger *zerolog.Logger) *Client {
	l := logger.With().Str("session_id", id).Logger()
	session := NewSessionManager(id, deps.Store, deps.Sessions, deps.Options.Session, &l)
	return &Client{
		Session:   session,
		Bookings:  NewBookingManager(deps.Store, session, deps.Events, deps.Options.DefaultDriverFee, &l),
		Favorites: NewFavoriteManager(deps.Store, session, &l),
		logger:    &l,
	}
}

func (c *Client) ID() string { return c.Session.ID() }

// Login signs in and loads the caches. A *domain.PartialLoadError means the
// identity is established but some caches are empty.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := c.Session.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.reset()
	return user, c.Load(ctx)
}

func (c *Client) Register(ctx context.Context, p Profile) (*models.User, error) {
	user, err := c.Session.Register(ctx, p)
	if err != nil {
		return nil, err
	}
	c.reset()
	return user, c.Load(ctx)
}

// Logout ends the session. The managers reset through their logout hooks.
func (c *Client) Logout(ctx context.Context) {
	c.Session.Logout(ctx)
}

func (c *Client) reset() {
	c.Bookings.Reset()
	c.Favorites.Reset()
}

// Load fetches bookings and favorites concurrently. Each part that succeeds
// is kept even when the other fails.
func (c *Client) Load(ctx context.Context) error {
	if !c.Session.Authenticated() {
		return domain.ErrUnauthenticated
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed = make(map[string]error)
	)
	run := func(part string, load func(context.Context) error) {
		defer wg.Done()
		if err := load(ctx); err != nil {
			mu.Lock()
			failed[part] = err
			mu.Unlock()
		}
	}

	wg.Add(2)
	go run("bookings", c.Bookings.Load)
	go run("favorites", c.Favorites.Load)
	wg.Wait()

	if len(failed) > 0 {
		err := &domain.PartialLoadError{Failed: failed}
		c.logger.Warn().Err(err).Msg("client load incomplete")
		return err
	}
	return nil
}

// Registry maps session ids to client contexts.
type Registry struct {
	deps   Dependencies
	logger *zerolog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	newID   func() string
}

func NewRegistry(deps Dependencies, logger *zerolog.Logger) *Registry {
	return &Registry{
		deps:    deps,
		logger:  logger,
		clients: make(map[string]*Client),
		newID:   uuid.NewString,
	}
}

// Open returns a fresh anonymous client that is not yet tracked.
func (r *Registry) Open() *Client {
	return NewClient(r.newID(), r.deps, r.logger)
}

// Add tracks c under its session id.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID()] = c
}

// Get returns the tracked client for id, rehydrating it from the session
// store when this process has not seen it yet.
func (r *Registry) Get(ctx context.Context, id string) (*Client, error) {
	r.mu.Lock()
	c, ok := r.clients[id]
	r.mu.Unlock()
	if ok {
		return c, nil
	}

	c = NewClient(id, r.deps, r.logger)
	if err := c.Session.Restore(ctx); err != nil {
		return nil, err
	}
	if _, err := c.Session.Verify(ctx); err != nil {
		return nil, err
	}
	if err := c.Load(ctx); err != nil {
		r.logger.Warn().Err(err).Str("session_id", id).Msg("rehydrated client load incomplete")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[id]; ok {
		return existing, nil
	}
	r.clients[id] = c
	r.logger.Debug().Str("session_id", id).Msg("client rehydrated")
	return c, nil
}

// Remove logs the client out and forgets it.
func (r *Registry) Remove(ctx context.Context, id string) {
	r.mu.Lock()
	c, ok := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()

	if ok {
		c.Logout(ctx)
		return
	}
	if err := r.deps.Sessions.ClearSession(ctx, id); err != nil {
		r.logger.Warn().Err(err).Str("session_id", id).Msg("failed to clear session")
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep forgets clients whose persisted session has expired.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	removed := 0
	for _, id := range ids {
		record, err := r.deps.Sessions.GetSession(ctx, id)
		if err != nil || record != nil {
			continue
		}
		r.mu.Lock()
		delete(r.clients, id)
		r.mu.Unlock()
		removed++
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(ctx); n > 0 {
				r.logger.Info().Int("removed", n).Msg("expired clients swept")
			}
		}
	}
}
