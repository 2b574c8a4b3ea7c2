package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"rentacar/internal/domain"
	"rentacar/internal/metrics"
	"rentacar/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type SessionState int32

const (
	StateAnonymous SessionState = iota
	StateAuthenticating
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

const minPasswordLength = 6

// Profile is the registration form.
type Profile struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// ProfilePatch is the self-service subset of a user update.
type ProfilePatch struct {
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Password *string `json:"password,omitempty"`
}

type SessionOptions struct {
	LoginAttempts int
	LoginWindow   time.Duration
	BcryptCost    int
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.LoginAttempts <= 0 {
		o.LoginAttempts = models.LoginAttempts
	}
	if o.LoginWindow <= 0 {
		o.LoginWindow = models.LoginWindow * time.Second
	}
	if o.BcryptCost == 0 {
		o.BcryptCost = bcrypt.DefaultCost
	}
	return o
}

type sessionSnapshot struct {
	state SessionState
	user  *models.User
}

// SessionManager owns the identity of one client context. The cached user
// is always redacted.
type SessionManager struct {
	id       string
	users    domain.UserRepository
	sessions domain.SessionRepository
	opts     SessionOptions
	logger   *zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	state    SessionState
	user     *models.User
	gen      uint64
	onLogout []func()
}

func NewSessionManager(id string, users domain.UserRepository, sessions domain.SessionRepository, opts SessionOptions, logger *zerolog.Logger) *SessionManager {
	return &SessionManager{
		id:       id,
		users:    users,
		sessions: sessions,
		opts:     opts.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

func (m *SessionManager) ID() string { return m.id }

func (m *SessionManager) State() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns a copy of the signed-in identity or nil.
func (m *SessionManager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated {
		return nil
	}
	return m.user.Redacted()
}

func (m *SessionManager) Authenticated() bool {
	return m.State() == StateAuthenticated
}

func (m *SessionManager) current() (*models.User, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated {
		return nil, m.gen
	}
	return m.user.Redacted(), m.gen
}

func (m *SessionManager) begin() (sessionSnapshot, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateAuthenticating {
		return sessionSnapshot{}, 0, domain.Validation("sign-in already in progress")
	}
	prev := sessionSnapshot{state: m.state, user: m.user}
	m.state = StateAuthenticating
	m.gen++
	return prev, m.gen, nil
}

func (m *SessionManager) rollback(prev sessionSnapshot, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	m.state = prev.state
	m.user = prev.user
}

// establish persists the redacted identity and switches to authenticated.
func (m *SessionManager) establish(ctx context.Context, gen uint64, user *models.User) (*models.User, error) {
	user = user.Redacted()

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return nil, domain.Validation("sign-in was superseded")
	}
	m.state = StateAuthenticated
	m.user = user
	m.mu.Unlock()

	m.persist(ctx, user)
	return user.Redacted(), nil
}

func (m *SessionManager) persist(ctx context.Context, user *models.User) {
	record := &models.Session{ID: m.id, User: user.Redacted(), CreatedAt: m.now().UTC()}
	if err := m.sessions.SetSession(ctx, record); err != nil {
		m.logger.Warn().Err(err).Str("session_id", m.id).Msg("failed to persist session")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func loginKey(email string) string {
	return "login:" + email
}

// Login authenticates by email and password. Any failure restores the
// state the manager was in before the call.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.Validation("email and password are required")
	}

	prev, gen, err := m.begin()
	if err != nil {
		return nil, err
	}

	user, err := m.authenticate(ctx, email, password)
	if err != nil {
		m.rollback(prev, gen)
		metrics.IncLogin(loginResult(err))
		m.logger.Info().Str("email", email).Str("kind", string(domain.KindOf(err))).Msg("login rejected")
		return nil, err
	}

	out, err := m.establish(ctx, gen, user)
	if err != nil {
		return nil, err
	}
	metrics.IncLogin("success")
	m.logger.Info().Int64("user_id", out.ID).Str("session_id", m.id).Msg("user signed in")
	return out, nil
}

func (m *SessionManager) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	allowed, err := m.sessions.CheckRateLimit(ctx, loginKey(email), m.opts.LoginAttempts, m.opts.LoginWindow)
	if err != nil {
		m.logger.Warn().Err(err).Msg("login throttle unavailable")
		allowed = true
	}
	if !allowed {
		return nil, domain.ErrTooManyAttempts
	}

	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, domain.Persistence(err, "could not sign in")
	}
	if user == nil {
		return nil, domain.NotFound("no account registered for %s", email)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredential
	}
	if !user.IsActive {
		return nil, domain.ErrInactiveAccount
	}

	if err := m.sessions.ResetRateLimit(ctx, loginKey(email)); err != nil {
		m.logger.Warn().Err(err).Msg("failed to reset login throttle")
	}
	return user, nil
}

func loginResult(err error) string {
	if k := domain.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

func validateProfile(p Profile) error {
	var errs []error
	if p.Email == "" {
		errs = append(errs, errors.New("email is required"))
	} else if _, err := mail.ParseAddress(p.Email); err != nil {
		errs = append(errs, errors.New("email is not valid"))
	}
	if len(p.Password) < minPasswordLength {
		errs = append(errs, errors.New("password must be at least 6 characters"))
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return domain.Validation("%s", strings.ReplaceAll(err.Error(), "\n", "; "))
	}
	return nil
}

// Register creates a regular account and signs it in.
func (m *SessionManager) Register(ctx context.Context, p Profile) (*models.User, error) {
	p.Email = normalizeEmail(p.Email)
	if err := validateProfile(p); err != nil {
		return nil, err
	}

	prev, gen, err := m.begin()
	if err != nil {
		return nil, err
	}

	user, err := m.createAccount(ctx, p)
	if err != nil {
		m.rollback(prev, gen)
		return nil, err
	}

	out, err := m.establish(ctx, gen, user)
	if err != nil {
		return nil, err
	}
	m.logger.Info().Int64("user_id", out.ID).Msg("user registered")
	return out, nil
}

func (m *SessionManager) createAccount(ctx context.Context, p Profile) (*models.User, error) {
	// must resolve before the insert is issued
	existing, err := m.users.GetUserByEmail(ctx, p.Email)
	if err != nil {
		return nil, domain.Persistence(err, "could not create account")
	}
	if existing != nil {
		return nil, domain.ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), m.opts.BcryptCost)
	if err != nil {
		return nil, domain.Persistence(err, "could not create account")
	}

	user := &models.User{
		Email:    p.Email,
		Password: string(hash),
		Name:     strings.TrimSpace(p.Name),
		Phone:    strings.TrimSpace(p.Phone),
		Role:     models.RoleUser,
		IsActive: true,
		Avatar:   models.AvatarBaseURL + p.Email,
	}
	if err := m.users.CreateUser(ctx, user); err != nil {
		return nil, domain.Persistence(err, "could not create account")
	}
	return user, nil
}

// OnLogout registers fn to run every time the identity is dropped, whether
// by the user or by Verify finding the account gone.
func (m *SessionManager) OnLogout(fn func()) {
	m.mu.Lock()
	m.onLogout = append(m.onLogout, fn)
	m.mu.Unlock()
}

// Logout drops the identity and its persisted record.
func (m *SessionManager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.state = StateAnonymous
	m.user = nil
	m.gen++
	hooks := m.onLogout
	m.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	if err := m.sessions.ClearSession(ctx, m.id); err != nil {
		m.logger.Warn().Err(err).Str("session_id", m.id).Msg("failed to clear session")
	}
}

func (m *SessionManager) UpdateProfile(ctx context.Context, patch ProfilePatch) (*models.User, error) {
	user, gen := m.current()
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}

	up := models.UserPatch{Phone: patch.Phone, Avatar: patch.Avatar}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, domain.Validation("name must not be empty")
		}
		up.Name = &name
	}
	if patch.Password != nil {
		if len(*patch.Password) < minPasswordLength {
			return nil, domain.Validation("password must be at least 6 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), m.opts.BcryptCost)
		if err != nil {
			return nil, domain.Persistence(err, "could not update profile")
		}
		h := string(hash)
		up.Password = &h
	}

	updated, err := m.users.UpdateUser(ctx, user.ID, up)
	if err != nil {
		return nil, domain.Persistence(err, "could not update profile")
	}
	updated = updated.Redacted()

	m.mu.Lock()
	stale := m.gen != gen
	if !stale {
		m.user = updated
	}
	m.mu.Unlock()

	if !stale {
		m.persist(ctx, updated)
	}
	return updated.Redacted(), nil
}

// Restore rehydrates the identity from the session store. A record that
// still carries a credential is discarded.
func (m *SessionManager) Restore(ctx context.Context) error {
	record, err := m.sessions.GetSession(ctx, m.id)
	if err != nil {
		return domain.Persistence(err, "could not restore session")
	}
	if record == nil || record.User == nil {
		return domain.ErrUnauthenticated
	}
	if record.Leaks() {
		m.logger.Warn().Str("session_id", m.id).Msg("session record carried a credential, discarding")
		if err := m.sessions.ClearSession(ctx, m.id); err != nil {
			m.logger.Warn().Err(err).Str("session_id", m.id).Msg("failed to clear session")
		}
		return domain.ErrUnauthenticated
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateAuthenticated
	m.user = record.User.Redacted()
	m.gen++
	return nil
}

// Verify re-reads the identity from the user store. A missing or
// deactivated account ends the session.
func (m *SessionManager) Verify(ctx context.Context) (*models.User, error) {
	user, gen := m.current()
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}

	fresh, err := m.users.GetUserByID(ctx, user.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		m.Logout(ctx)
		return nil, domain.ErrUnauthenticated
	case err != nil:
		return nil, domain.Persistence(err, "could not verify session")
	case !fresh.IsActive:
		m.Logout(ctx)
		return nil, domain.ErrInactiveAccount
	}
	fresh = fresh.Redacted()

	m.mu.Lock()
	if m.gen == gen {
		m.user = fresh
	}
	m.mu.Unlock()
	return fresh.Redacted(), nil
}

func (m *SessionManager) RequireAdmin(ctx context.Context) (*models.User, error) {
	user, err := m.Verify(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, domain.Forbidden("administrator access required")
	}
	return user, nil
}
