package rooms

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/castgrid/backend/internal/models"
)

// SeedRoomCount is the number of placeholder rooms created for a new company.
const SeedRoomCount = 8

// Backend is the remote persistence interface for rooms. All lookups are
// scoped by company; a miss is (nil, nil), and any returned error means the
// backend could not serve the call at all.
type Backend interface {
	ListAll(ctx context.Context) ([]models.Room, error)
	ListByCompany(ctx context.Context, companyID string) ([]models.Room, error)
	GetByID(ctx context.Context, roomID uuid.UUID, companyID string) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, roomID uuid.UUID, companyID string, upd Update) (*models.Room, error)
	Delete(ctx context.Context, roomID uuid.UUID, companyID string) error
}

// Update is a partial room update. Nil fields are left untouched.
type Update struct {
	Name       *string
	StreamURL  *string
	StreamType *models.StreamType
	IsActive   *bool
	Thumbnail  *string
	AutoStart  *bool
}

// CreateParams holds the fields for a new room.
type CreateParams struct {
	Name       string
	StreamURL  string
	StreamType models.StreamType
	IsActive   bool
	Thumbnail  string
	AutoStart  bool
}

// Store is the source of truth for room configuration per company.
//
// It fronts a remote Backend with a process-local in-memory fallback: the
// first remote failure permanently degrades this Store to the in-memory map
// for the rest of its lifetime, and the caller never sees the failure. Rooms
// persisted remotely before the degrade are invisible until restart; this is
// the accepted trade-off for a non-critical configuration store.
type Store struct {
	remote   Backend
	local    *memoryStore
	logger   *zap.Logger
	fallback atomic.Bool
	logOnce  sync.Once
	initMu   sync.Mutex
	now      func() time.Time
}

// NewStore creates a Store over the given remote backend. A nil backend
// starts the store directly in in-memory mode (e.g. no database configured).
func NewStore(remote Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		remote: remote,
		local:  newMemoryStore(),
		logger: logger,
		now:    time.Now,
	}
	if remote == nil {
		s.fallback.Store(true)
	}
	return s
}

// UsingFallback reports whether the store has degraded to in-memory storage.
func (s *Store) UsingFallback() bool {
	return s.fallback.Load()
}

// degrade flips the store to in-memory mode. Sticky for the store's lifetime;
// the transition is logged once, not on every subsequent call.
func (s *Store) degrade(op string, err error) {
	s.fallback.Store(true)
	s.logOnce.Do(func() {
		s.logger.Warn("room backend failed, degrading to in-memory storage for process lifetime",
			zap.String("op", op),
			zap.Error(err),
		)
	})
}

// ListAll returns every room across every company (administrative use).
func (s *Store) ListAll(ctx context.Context) []models.Room {
	if !s.UsingFallback() {
		list, err := s.remote.ListAll(ctx)
		if err == nil {
			return list
		}
		s.degrade("list_all", err)
	}
	return s.local.listAll()
}

// ListByCompany returns all rooms for a company in creation order.
func (s *Store) ListByCompany(ctx context.Context, companyID string) []models.Room {
	if !s.UsingFallback() {
		list, err := s.remote.ListByCompany(ctx, companyID)
		if err == nil {
			return list
		}
		s.degrade("list_by_company", err)
	}
	return s.local.listByCompany(companyID)
}

// GetByID returns a single room, or nil when no room with that ID exists for
// the company. A colliding ID under a different company is a miss, never a leak.
func (s *Store) GetByID(ctx context.Context, roomID uuid.UUID, companyID string) *models.Room {
	if !s.UsingFallback() {
		room, err := s.remote.GetByID(ctx, roomID, companyID)
		if err == nil {
			return room
		}
		s.degrade("get_by_id", err)
	}
	return s.local.getByID(roomID, companyID)
}

// Create inserts a new room for the company. It always succeeds from the
// caller's perspective: a remote failure degrades the store and the room
// lands in local storage instead.
func (s *Store) Create(ctx context.Context, companyID string, p CreateParams) *models.Room {
	now := s.now().UTC()
	room := &models.Room{
		ID:         uuid.New(),
		CompanyID:  companyID,
		Name:       p.Name,
		StreamURL:  p.StreamURL,
		StreamType: p.StreamType,
		IsActive:   p.IsActive,
		Thumbnail:  p.Thumbnail,
		AutoStart:  p.AutoStart,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if !s.UsingFallback() {
		err := s.remote.Create(ctx, room)
		if err == nil {
			return room
		}
		s.degrade("create", err)
	}
	s.local.create(room)
	return room
}

// Update merges the supplied fields into the room and refreshes UpdatedAt.
// Returns nil when no room with that ID exists for the company.
func (s *Store) Update(ctx context.Context, roomID uuid.UUID, companyID string, upd Update) *models.Room {
	if !s.UsingFallback() {
		room, err := s.remote.Update(ctx, roomID, companyID, upd)
		if err == nil {
			return room
		}
		s.degrade("update", err)
	}
	return s.local.update(roomID, companyID, upd, s.now().UTC())
}

// Delete removes the room. Idempotent: deleting a missing room is not an error.
func (s *Store) Delete(ctx context.Context, roomID uuid.UUID, companyID string) {
	if !s.UsingFallback() {
		err := s.remote.Delete(ctx, roomID, companyID)
		if err == nil {
			return
		}
		s.degrade("delete", err)
	}
	s.local.delete(roomID, companyID)
}

// InitializeForCompany seeds a new company with its fixed room grid: slots 1-4
// as YouTube embeds, slots 5-8 as HLS, all unconfigured and inactive. If the
// company already has at least one room the existing set is returned unchanged.
func (s *Store) InitializeForCompany(ctx context.Context, companyID string) []models.Room {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	existing := s.ListByCompany(ctx, companyID)
	if len(existing) > 0 {
		return existing
	}
	for i := 0; i < SeedRoomCount; i++ {
		streamType := models.StreamTypeYouTube
		if i >= SeedRoomCount/2 {
			streamType = models.StreamTypeHLS
		}
		s.Create(ctx, companyID, CreateParams{
			Name:       seedRoomName(i),
			StreamType: streamType,
		})
	}
	return s.ListByCompany(ctx, companyID)
}

func seedRoomName(i int) string {
	return fmt.Sprintf("Room %d", i+1)
}
