package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soficodes/bloghub/internal/config"
	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/repo/postgres"
	"github.com/soficodes/bloghub/internal/security"
)

// EnsureAdminUser seeds the configured admin account at boot. Self-service
// signup always produces role=user, so this is the only way an admin comes
// into existence besides another admin promoting someone.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	users := postgres.NewUsersRepo(pool)

	_, err = users.Create(ctx, cfg.AdminEmail, hash, cfg.AdminName, identity.RoleAdmin)

	return err
}
