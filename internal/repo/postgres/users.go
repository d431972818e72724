package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soficodes/bloghub/internal/domain/identity"
)

type UsersRepo struct {
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{pool: pool}
}

const userColumns = `id, email, password_hash, name, role, created_at, updated_at`

func scanUser(row pgx.Row) (identity.Identity, error) {
	var u identity.Identity

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Identity{}, identity.ErrNotFound
		}

		return identity.Identity{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (identity.Identity, error) {
	return scanUser(r.pool.QueryRow(
		ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (identity.Identity, error) {
	return scanUser(r.pool.QueryRow(
		ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name string, role identity.Role) (identity.Identity, error) {
	now := time.Now().UTC()

	u := identity.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.CreatedAt, u.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			return identity.Identity{}, identity.ErrEmailTaken
		}

		return identity.Identity{}, err
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context, limit, offset int) ([]identity.Identity, int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+`, COUNT(*) OVER() AS total
		 FROM users
		 ORDER BY created_at ASC, id ASC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	out := make([]identity.Identity, 0, limit)
	total := 0

	for rows.Next() {
		var u identity.Identity
		var t int

		err = rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt, &t)

		if err != nil {
			return nil, 0, err
		}

		total = t
		out = append(out, u)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

func (r *UsersRepo) UpdateName(ctx context.Context, id, name string) (identity.Identity, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET name = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, name,
	))
}

func (r *UsersRepo) UpdateRole(ctx context.Context, id string, role identity.Role) (identity.Identity, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET role = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, role,
	))
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}

	return nil
}

func (r *UsersRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
