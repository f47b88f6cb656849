package rooms

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castgrid/backend/internal/models"
)

// memoryStore is the process-local fallback substrate: company id -> rooms in
// creation order. It starts empty and is never persisted across restarts.
// The mutex guards concurrent request handlers racing on first-touch
// initialization of a company's list.
type memoryStore struct {
	mu    sync.Mutex
	rooms map[string][]models.Room
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rooms: make(map[string][]models.Room)}
}

func (m *memoryStore) listAll() []models.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Room
	for _, list := range m.rooms {
		out = append(out, list...)
	}
	return out
}

func (m *memoryStore) listByCompany(companyID string) []models.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.rooms[companyID]
	out := make([]models.Room, len(list))
	copy(out, list)
	return out
}

func (m *memoryStore) getByID(roomID uuid.UUID, companyID string) *models.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms[companyID] {
		if r.ID == roomID {
			room := r
			return &room
		}
	}
	return nil
}

func (m *memoryStore) create(room *models.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.CompanyID] = append(m.rooms[room.CompanyID], *room)
}

func (m *memoryStore) update(roomID uuid.UUID, companyID string, upd Update, now time.Time) *models.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.rooms[companyID]
	for i := range list {
		if list[i].ID != roomID {
			continue
		}
		applyUpdate(&list[i], upd)
		list[i].UpdatedAt = now
		room := list[i]
		return &room
	}
	return nil
}

func (m *memoryStore) delete(roomID uuid.UUID, companyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.rooms[companyID]
	for i := range list {
		if list[i].ID == roomID {
			m.rooms[companyID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func applyUpdate(room *models.Room, upd Update) {
	if upd.Name != nil {
		room.Name = *upd.Name
	}
	if upd.StreamURL != nil {
		room.StreamURL = *upd.StreamURL
	}
	if upd.StreamType != nil {
		room.StreamType = *upd.StreamType
	}
	if upd.IsActive != nil {
		room.IsActive = *upd.IsActive
	}
	if upd.Thumbnail != nil {
		room.Thumbnail = *upd.Thumbnail
	}
	if upd.AutoStart != nil {
		room.AutoStart = *upd.AutoStart
	}
}
