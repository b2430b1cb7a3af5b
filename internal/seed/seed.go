// Package seed bootstraps the roles, administrator and genres a fresh
// database needs. Every step is idempotent.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/musicportal-backend/internal/accounts"
	"github.com/angelmondragon/musicportal-backend/internal/catalog"
	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type Params struct {
	DB       *gorm.DB
	Accounts accounts.Provider
	Genres   catalog.GenreService
	Config   config.SeedConfig
	Logger   *logger.Logger
}

// Run applies the seed. Steps run independently and their failures are
// combined, so one bad genre does not keep the admin from being created.
func Run(ctx context.Context, params Params) error {
	if params.DB == nil || params.Accounts == nil || params.Genres == nil {
		return fmt.Errorf("seed requires database, accounts and genres")
	}

	var err error
	err = multierr.Append(err, seedRoles(ctx, params.DB))
	err = multierr.Append(err, seedAdmin(ctx, params.Accounts, params.Config))
	for _, name := range params.Config.Genres {
		err = multierr.Append(err, seedGenre(ctx, params.Genres, name))
	}

	if params.Logger != nil {
		if err != nil {
			params.Logger.Error(ctx, "seed completed with errors", err)
		} else {
			params.Logger.Info(ctx, "seed completed")
		}
	}
	return err
}

func seedRoles(ctx context.Context, conn *gorm.DB) error {
	repo := accounts.NewRepository(conn)
	var err error
	for _, role := range enums.AllRoles() {
		if _, ensureErr := repo.EnsureRole(ctx, role.String()); ensureErr != nil {
			err = multierr.Append(err, fmt.Errorf("seed role %s: %w", role, ensureErr))
		}
	}
	return err
}

func seedAdmin(ctx context.Context, provider accounts.Provider, cfg config.SeedConfig) error {
	username := strings.TrimSpace(cfg.AdminUsername)
	if username == "" {
		return nil
	}

	account, err := provider.FindByUsername(ctx, username)
	switch {
	case err == nil:
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		account, err = provider.CreateAccount(ctx, accounts.CreateAccountInput{
			Username: username,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			return fmt.Errorf("seed admin account: %w", err)
		}
	default:
		return fmt.Errorf("seed admin lookup: %w", err)
	}

	if err := provider.AddToRole(ctx, account.ID, enums.RoleAdministrator); err != nil {
		return fmt.Errorf("seed admin role: %w", err)
	}
	return nil
}

func seedGenre(ctx context.Context, genres catalog.GenreService, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if _, err := genres.Create(ctx, name); err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		return fmt.Errorf("seed genre %s: %w", name, err)
	}
	return nil
}
