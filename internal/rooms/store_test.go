package rooms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castgrid/backend/internal/models"
)

// fakeBackend implements Backend over an in-memory map with error injection.
type fakeBackend struct {
	mem   *memoryStore
	fail  error // when set, every call fails with this error
	calls []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{mem: newMemoryStore()}
}

func (f *fakeBackend) record(op string) error {
	f.calls = append(f.calls, op)
	return f.fail
}

func (f *fakeBackend) ListAll(context.Context) ([]models.Room, error) {
	if err := f.record("list_all"); err != nil {
		return nil, err
	}
	return f.mem.listAll(), nil
}

func (f *fakeBackend) ListByCompany(_ context.Context, companyID string) ([]models.Room, error) {
	if err := f.record("list_by_company"); err != nil {
		return nil, err
	}
	return f.mem.listByCompany(companyID), nil
}

func (f *fakeBackend) GetByID(_ context.Context, roomID uuid.UUID, companyID string) (*models.Room, error) {
	if err := f.record("get_by_id"); err != nil {
		return nil, err
	}
	return f.mem.getByID(roomID, companyID), nil
}

func (f *fakeBackend) Create(_ context.Context, room *models.Room) error {
	if err := f.record("create"); err != nil {
		return err
	}
	f.mem.create(room)
	return nil
}

func (f *fakeBackend) Update(_ context.Context, roomID uuid.UUID, companyID string, upd Update) (*models.Room, error) {
	if err := f.record("update"); err != nil {
		return nil, err
	}
	return f.mem.update(roomID, companyID, upd, time.Now().UTC()), nil
}

func (f *fakeBackend) Delete(_ context.Context, roomID uuid.UUID, companyID string) error {
	if err := f.record("delete"); err != nil {
		return err
	}
	f.mem.delete(roomID, companyID)
	return nil
}

func strPtr(s string) *string { return &s }

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeBackend(), nil)

	room := store.Create(ctx, "company-a", CreateParams{Name: "Main Stage", StreamType: models.StreamTypeYouTube})
	require.NotNil(t, room)

	assert.NotNil(t, store.GetByID(ctx, room.ID, "company-a"))
	assert.Nil(t, store.GetByID(ctx, room.ID, "company-b"), "a colliding id must never leak across companies")
	assert.Empty(t, store.ListByCompany(ctx, "company-b"))
}

func TestFallbackStickiness(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	store := NewStore(backend, nil)

	remote := store.Create(ctx, "acme", CreateParams{Name: "Remote Room", StreamType: models.StreamTypeHLS})
	require.False(t, store.UsingFallback())

	// First remote failure flips the mode permanently.
	backend.fail = errors.New("connection refused")
	assert.Empty(t, store.ListByCompany(ctx, "acme"), "reads degrade to the empty local map")
	require.True(t, store.UsingFallback())

	// A later remote recovery must NOT flip the mode back.
	backend.fail = nil
	callsBefore := len(backend.calls)
	localRoom := store.Create(ctx, "acme", CreateParams{Name: "Local Room", StreamType: models.StreamTypeHLS})
	require.True(t, store.UsingFallback())
	assert.Len(t, backend.calls, callsBefore, "no call may reach the recovered backend")

	// The local write round-trips on subsequent reads in the same process.
	got := store.GetByID(ctx, localRoom.ID, "acme")
	require.NotNil(t, got)
	assert.Equal(t, "Local Room", got.Name)

	// Rooms persisted remotely before the degrade are invisible until restart.
	assert.Nil(t, store.GetByID(ctx, remote.ID, "acme"))
	list := store.ListByCompany(ctx, "acme")
	require.Len(t, list, 1)
	assert.Equal(t, localRoom.ID, list[0].ID)
}

func TestNilBackendStartsInFallback(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, nil)
	require.True(t, store.UsingFallback())

	room := store.Create(ctx, "acme", CreateParams{Name: "Only Local", StreamType: models.StreamTypeEmbed})
	got := store.GetByID(ctx, room.ID, "acme")
	require.NotNil(t, got)
	assert.Equal(t, models.StreamTypeEmbed, got.StreamType)
}

func TestInitializeForCompanyIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeBackend(), nil)

	first := store.InitializeForCompany(ctx, "acme")
	require.Len(t, first, SeedRoomCount)

	for i, room := range first {
		assert.Equal(t, "acme", room.CompanyID)
		assert.Empty(t, room.StreamURL)
		assert.False(t, room.IsActive)
		if i < SeedRoomCount/2 {
			assert.Equal(t, models.StreamTypeYouTube, room.StreamType, "slot %d", i)
		} else {
			assert.Equal(t, models.StreamTypeHLS, room.StreamType, "slot %d", i)
		}
	}
	assert.Equal(t, "Room 1", first[0].Name)
	assert.Equal(t, "Room 8", first[7].Name)

	second := store.InitializeForCompany(ctx, "acme")
	require.Len(t, second, SeedRoomCount, "second call must not create duplicates")
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestPartialUpdateMerge(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, nil)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	room := store.Create(ctx, "acme", CreateParams{Name: "A", StreamType: models.StreamTypeHLS})

	store.now = func() time.Time { return base.Add(time.Minute) }
	updated := store.Update(ctx, room.ID, "acme", Update{StreamURL: strPtr("http://x/a.m3u8")})
	require.NotNil(t, updated)

	assert.Equal(t, "A", updated.Name)
	assert.Equal(t, "http://x/a.m3u8", updated.StreamURL)
	assert.False(t, updated.IsActive)
	assert.Equal(t, models.StreamTypeHLS, updated.StreamType)
	assert.True(t, updated.UpdatedAt.After(room.UpdatedAt), "updated_at must be strictly greater")
	assert.Equal(t, room.CreatedAt, updated.CreatedAt)
}

func TestUpdateMissingRoomReturnsNil(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, nil)
	assert.Nil(t, store.Update(ctx, uuid.New(), "acme", Update{Name: strPtr("nope")}))
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeBackend(), nil)

	room := store.Create(ctx, "acme", CreateParams{Name: "Doomed", StreamType: models.StreamTypeYouTube})

	assert.NotPanics(t, func() { store.Delete(ctx, uuid.New(), "acme") })
	store.Delete(ctx, room.ID, "acme")
	assert.Nil(t, store.GetByID(ctx, room.ID, "acme"))
	assert.NotPanics(t, func() { store.Delete(ctx, room.ID, "acme") }, "deleting twice is not an error")
}

func TestWriteFailureDegradesAndWritesLocally(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	store := NewStore(backend, nil)

	backend.fail = errors.New("query timeout")
	room := store.Create(ctx, "acme", CreateParams{Name: "Landed Locally", StreamType: models.StreamTypeHLS})
	require.NotNil(t, room, "the caller never observes the failure")
	require.True(t, store.UsingFallback())

	got := store.GetByID(ctx, room.ID, "acme")
	require.NotNil(t, got)
	assert.Equal(t, "Landed Locally", got.Name)
	assert.Nil(t, backend.mem.getByID(room.ID, "acme"), "nothing reached the remote backend")
}
