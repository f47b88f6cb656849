package rooms

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castgrid/backend/internal/models"
)

const roomColumns = `id, company_id, name, stream_url, stream_type, is_active, thumbnail, auto_start, created_at, updated_at`

// Repository is the Postgres room backend.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Postgres-backed room repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRoom(row pgx.Row) (*models.Room, error) {
	var r models.Room
	err := row.Scan(&r.ID, &r.CompanyID, &r.Name, &r.StreamURL, &r.StreamType, &r.IsActive, &r.Thumbnail, &r.AutoStart, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRooms(rows pgx.Rows) ([]models.Room, error) {
	defer rows.Close()
	var list []models.Room
	for rows.Next() {
		var r models.Room
		if err := rows.Scan(&r.ID, &r.CompanyID, &r.Name, &r.StreamURL, &r.StreamType, &r.IsActive, &r.Thumbnail, &r.AutoStart, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// ListAll returns every room across all companies.
func (r *Repository) ListAll(ctx context.Context) ([]models.Room, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY company_id, created_at`)
	if err != nil {
		return nil, err
	}
	return collectRooms(rows)
}

// ListByCompany returns all rooms for a company in creation order.
func (r *Repository) ListByCompany(ctx context.Context, companyID string) ([]models.Room, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms WHERE company_id = $1 ORDER BY created_at`, companyID)
	if err != nil {
		return nil, err
	}
	return collectRooms(rows)
}

// GetByID returns a room scoped by company, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, roomID uuid.UUID, companyID string) (*models.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1 AND company_id = $2`
	room, err := scanRoom(r.pool.QueryRow(ctx, q, roomID, companyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// Create inserts the room with its pre-assigned ID and timestamps.
func (r *Repository) Create(ctx context.Context, room *models.Room) error {
	const q = `INSERT INTO rooms (id, company_id, name, stream_url, stream_type, is_active, thumbnail, auto_start, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, q, room.ID, room.CompanyID, room.Name, room.StreamURL, room.StreamType, room.IsActive, room.Thumbnail, room.AutoStart, room.CreatedAt, room.UpdatedAt)
	return err
}

// Update merges the supplied fields and refreshes updated_at. Returns
// (nil, nil) when no room with that ID exists for the company.
func (r *Repository) Update(ctx context.Context, roomID uuid.UUID, companyID string, upd Update) (*models.Room, error) {
	const q = `UPDATE rooms SET
		name        = COALESCE($3, name),
		stream_url  = COALESCE($4, stream_url),
		stream_type = COALESCE($5, stream_type),
		is_active   = COALESCE($6, is_active),
		thumbnail   = COALESCE($7, thumbnail),
		auto_start  = COALESCE($8, auto_start),
		updated_at  = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING ` + roomColumns
	var streamType *string
	if upd.StreamType != nil {
		s := string(*upd.StreamType)
		streamType = &s
	}
	room, err := scanRoom(r.pool.QueryRow(ctx, q, roomID, companyID, upd.Name, upd.StreamURL, streamType, upd.IsActive, upd.Thumbnail, upd.AutoStart))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// Delete removes the room scoped by company. Deleting a missing room is a no-op.
func (r *Repository) Delete(ctx context.Context, roomID uuid.UUID, companyID string) error {
	const q = `DELETE FROM rooms WHERE id = $1 AND company_id = $2`
	_, err := r.pool.Exec(ctx, q, roomID, companyID)
	return err
}
