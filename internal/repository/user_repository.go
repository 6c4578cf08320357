package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// ResidentRepository reads residents for authentication and notification routing.
type ResidentRepository interface {
	Create(ctx context.Context, resident *domain.Resident) error
	GetByID(ctx context.Context, id string) (*domain.Resident, error)
}

type residentRepository struct {
	pool *pgxpool.Pool
}

// NewResidentRepository creates repository.
func NewResidentRepository(pool *pgxpool.Pool) ResidentRepository {
	return &residentRepository{pool: pool}
}

func (r *residentRepository) Create(ctx context.Context, resident *domain.Resident) error {
	const query = `
        INSERT INTO users (id, name, email, apartment, active_flag)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		resident.ID,
		resident.Name,
		resident.Email,
		resident.Apartment,
		resident.Active,
	).Scan(&resident.CreatedAt, &resident.UpdatedAt)
}

func (r *residentRepository) GetByID(ctx context.Context, id string) (*domain.Resident, error) {
	const query = `
        SELECT id, name, email, apartment, active_flag, created_at, updated_at
        FROM users WHERE id=$1`
	var resident domain.Resident
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&resident.ID,
		&resident.Name,
		&resident.Email,
		&resident.Apartment,
		&resident.Active,
		&resident.CreatedAt,
		&resident.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &resident, nil
}
