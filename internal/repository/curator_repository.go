package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/curator-desk/internal/domain"
)

type curatorRepository struct {
	pool *pgxpool.Pool
}

// NewCuratorRepository instantiates the repository.
func NewCuratorRepository(pool *pgxpool.Pool) CuratorRepository {
	return &curatorRepository{pool: pool}
}

func (r *curatorRepository) Upsert(ctx context.Context, curator *domain.Curator) error {
	const query = `
        INSERT INTO curators (id, display_name, active)
        VALUES ($1,$2,$3)
        ON CONFLICT (id) DO UPDATE SET display_name=EXCLUDED.display_name, active=EXCLUDED.active
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		curator.ID,
		curator.DisplayName,
		curator.Active,
	).Scan(&curator.CreatedAt)
}

func (r *curatorRepository) GetByID(ctx context.Context, id string) (*domain.Curator, error) {
	const query = `
        SELECT id, display_name, active, created_at
        FROM curators WHERE id=$1`
	var curator domain.Curator
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&curator.ID,
		&curator.DisplayName,
		&curator.Active,
		&curator.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &curator, nil
}

func (r *curatorRepository) List(ctx context.Context, activeOnly bool) ([]domain.Curator, error) {
	query := `
        SELECT id, display_name, active, created_at
        FROM curators`
	if activeOnly {
		query += " WHERE active"
	}
	query += " ORDER BY display_name ASC"

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Curator
	for rows.Next() {
		var curator domain.Curator
		if err := rows.Scan(
			&curator.ID,
			&curator.DisplayName,
			&curator.Active,
			&curator.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, curator)
	}
	return result, rows.Err()
}
