package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// User maps to the users table.
type User struct {
	ID        int       `db:"id"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	Password  string    `db:"password"`
	AuthToken string    `db:"auth_token"`
	CreatedAt time.Time `db:"created_at"`
}

// UserRepo reads and creates users.
type UserRepo struct {
	db DB
}

// NewUserRepo creates a UserRepo.
func NewUserRepo(db DB) *UserRepo {
	return &UserRepo{db: db}
}

// ByUsername returns the user with username, or ErrNotFound.
func (r *UserRepo) ByUsername(ctx context.Context, username string) (User, error) {
	u, err := queryOne[User](ctx, QuerierFromCtx(ctx, r.db),
		`SELECT id, username, email, password, auth_token, created_at
		 FROM users WHERE username = @username`,
		pgx.NamedArgs{"username": username})
	if err != nil {
		return User{}, mapError(err, "user", username)
	}
	return u, nil
}

// UserIDByToken resolves a bearer token to a user id, or ErrNotFound.
func (r *UserRepo) UserIDByToken(ctx context.Context, token string) (int, error) {
	var id int
	err := QuerierFromCtx(ctx, r.db).
		QueryRow(ctx, "SELECT id FROM users WHERE auth_token = $1", token).
		Scan(&id)
	if err != nil {
		return 0, mapError(err, "token", "****")
	}
	return id, nil
}

// Create inserts a user and returns its id. password must already be hashed.
func (r *UserRepo) Create(ctx context.Context, username, email, password, authToken string) (int, error) {
	var id int
	err := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`INSERT INTO users (username, email, password, auth_token)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		username, email, password, authToken,
	).Scan(&id)
	if err != nil {
		return 0, mapError(err, "user", username)
	}
	return id, nil
}
