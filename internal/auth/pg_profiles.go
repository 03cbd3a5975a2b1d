package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgProfileStore struct {
	pool *pgxpool.Pool
}

func NewPgProfileStore(pool *pgxpool.Pool) *PgProfileStore {
	return &PgProfileStore{pool: pool}
}

func (s *PgProfileStore) GetRoleName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name *string
	err := s.pool.QueryRow(ctx, `
		SELECT r.name
		FROM profiles p
		LEFT JOIN roles r ON r.id = p.role_id
		WHERE p.id = $1
	`, userID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrProfileNotFound
		}
		return "", err
	}
	if name == nil {
		return "", nil
	}
	return *name, nil
}
