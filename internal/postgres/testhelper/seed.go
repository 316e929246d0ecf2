package testhelper

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedUser inserts a user with a unique username and an empty profile and
// returns its id.
func SeedUser(t *testing.T, pool *pgxpool.Pool) int {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.New().String()[:8]

	var id int
	err := pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password, auth_token)
		 VALUES ($1, $2, 'x', $3) RETURNING id`,
		"user-"+suffix, "user-"+suffix+"@example.com", uuid.NewString(),
	).Scan(&id)
	if err != nil {
		t.Fatalf("testhelper: SeedUser insert user: %v", err)
	}

	if _, err := pool.Exec(ctx, "INSERT INTO profiles (user_id) VALUES ($1)", id); err != nil {
		t.Fatalf("testhelper: SeedUser insert profile: %v", err)
	}
	return id
}
