package service

import (
	"context"
	"sync"

	"rentacar/internal/domain"
	"rentacar/internal/metrics"
	"rentacar/internal/models"

	"github.com/rs/zerolog"
)

// FavoriteManager owns the favorite car ids of one client context.
type FavoriteManager struct {
	repo    domain.FavoriteRepository
	session *SessionManager
	logger  *zerolog.Logger

	mu  sync.RWMutex
	ids []int64
	set map[int64]struct{}
	gen uint64
}

func NewFavoriteManager(repo domain.FavoriteRepository, session *SessionManager, logger *zerolog.Logger) *FavoriteManager {
	m := &FavoriteManager{
		repo:    repo,
		session: session,
		logger:  logger,
		set:     make(map[int64]struct{}),
	}
	session.OnLogout(m.Reset)
	return m
}

func (m *FavoriteManager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

func (m *FavoriteManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = nil
	m.set = make(map[int64]struct{})
	m.gen++
}

func (m *FavoriteManager) Load(ctx context.Context) error {
	_, err := m.Cars(ctx)
	return err
}

// Cars lists the favorited cars from the store and refreshes the cache.
func (m *FavoriteManager) Cars(ctx context.Context) ([]*models.Car, error) {
	user := m.session.User()
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	gen := m.generation()

	favorites, err := m.repo.GetFavoritesByUserID(ctx, user.ID)
	if err != nil {
		return nil, domain.Persistence(err, "could not load favorites")
	}

	cars := make([]*models.Car, 0, len(favorites))
	ids := make([]int64, 0, len(favorites))
	set := make(map[int64]struct{}, len(favorites))
	for _, f := range favorites {
		if _, dup := set[f.CarID]; dup {
			continue
		}
		set[f.CarID] = struct{}{}
		ids = append(ids, f.CarID)
		if f.Car != nil {
			cars = append(cars, f.Car)
		}
	}

	m.mu.Lock()
	if m.gen == gen {
		m.ids = ids
		m.set = set
	}
	m.mu.Unlock()
	return cars, nil
}

// Toggle flips membership of carID. The cache follows the state the store
// reports, not the previous cached value.
func (m *FavoriteManager) Toggle(ctx context.Context, carID int64) (bool, error) {
	if carID <= 0 {
		return false, domain.Validation("invalid car id %d", carID)
	}
	user, err := m.session.Verify(ctx)
	if err != nil {
		return false, err
	}
	gen := m.generation()

	favorited, err := m.repo.ToggleFavorite(ctx, user.ID, carID)
	if err != nil {
		return false, domain.Persistence(err, "could not update favorites")
	}

	m.mu.Lock()
	if m.gen == gen {
		m.reconcile(carID, favorited)
	}
	m.mu.Unlock()

	metrics.IncFavoriteToggle(favorited)
	m.logger.Debug().Int64("user_id", user.ID).Int64("car_id", carID).Bool("favorited", favorited).Msg("favorite toggled")
	return favorited, nil
}

// reconcile must be called with mu held.
func (m *FavoriteManager) reconcile(carID int64, favorited bool) {
	_, cached := m.set[carID]
	switch {
	case favorited && !cached:
		m.set[carID] = struct{}{}
		m.ids = append([]int64{carID}, m.ids...)
	case !favorited && cached:
		delete(m.set, carID)
		kept := make([]int64, 0, len(m.ids))
		for _, id := range m.ids {
			if id != carID {
				kept = append(kept, id)
			}
		}
		m.ids = kept
	}
}

func (m *FavoriteManager) IsFavorite(carID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.set[carID]
	return ok
}

// List returns the cached favorite car ids, most recent first.
func (m *FavoriteManager) List() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int64{}, m.ids...)
}
