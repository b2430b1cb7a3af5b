package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/auth"
	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/db"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/musicportal-backend/pkg/pagination"
	"github.com/angelmondragon/musicportal-backend/pkg/security"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const invalidCredentialsMessage = "invalid credentials"

// IdentityError lists every reason the provider refused to create or update
// an account.
type IdentityError struct {
	Reasons []string
}

func (e *IdentityError) Error() string {
	return "identity provider rejected account: " + strings.Join(e.Reasons, "; ")
}

func identityFailure(reasons []string) error {
	return pkgerrors.Wrap(pkgerrors.CodeIdentityProvider, &IdentityError{Reasons: reasons}, "account rejected").
		WithDetails(map[string]any{"reasons": reasons})
}

// Provider is the identity surface used by registration and auth. It can be
// bound to a caller's transaction with Service.WithTx.
type Provider interface {
	CreateAccount(ctx context.Context, input CreateAccountInput) (*models.Account, error)
	CreateAccountWithHash(ctx context.Context, input CreateAccountWithHashInput) (*models.Account, error)
	AddToRole(ctx context.Context, accountID uuid.UUID, role enums.Role) error
	RemoveFromRole(ctx context.Context, accountID uuid.UUID, role enums.Role) error
	RolesFor(ctx context.Context, accountID uuid.UUID) ([]enums.Role, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	VerifyCredentials(ctx context.Context, username, password string) (*models.Account, error)
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Service adds the administrator operations on top of Provider.
type Service interface {
	Provider
	WithTx(tx *gorm.DB) Provider
	List(ctx context.Context, params pagination.Params) (*ListResult, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateInput) (*AccountDTO, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
}

type txRunner interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type fileRemover interface {
	Remove(ctx context.Context, reference string) error
}

// ServiceParams bundles the dependencies required to build an accounts service.
type ServiceParams struct {
	DB             txRunner
	PasswordConfig config.PasswordConfig
	Outbox         outbox.Emitter
	Files          fileRemover
	Logger         *logger.Logger
}

type provider struct {
	repo        *Repository
	passwordCfg config.PasswordConfig
	validate    *validator.Validate
}

type service struct {
	*provider
	db     txRunner
	outbox outbox.Emitter
	files  fileRemover
	logg   *logger.Logger
}

// NewService constructs the identity provider.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	return &service{
		provider: newProvider(params.DB.DB(), params.PasswordConfig),
		db:       params.DB,
		outbox:   params.Outbox,
		files:    params.Files,
		logg:     params.Logger,
	}, nil
}

func newProvider(conn *gorm.DB, cfg config.PasswordConfig) *provider {
	return &provider{
		repo:        NewRepository(conn),
		passwordCfg: cfg,
		validate:    validator.New(),
	}
}

func (s *service) WithTx(tx *gorm.DB) Provider {
	return &provider{repo: NewRepository(tx), passwordCfg: s.passwordCfg, validate: s.validate}
}

func (p *provider) CreateAccount(ctx context.Context, input CreateAccountInput) (*models.Account, error) {
	reasons := security.CheckPasswordPolicy(input.Password)
	if len(reasons) > 0 {
		// report identity problems alongside the password ones
		more, err := p.identityReasons(ctx, input.Username, input.Email, uuid.Nil)
		if err != nil {
			return nil, err
		}
		return nil, identityFailure(append(more, reasons...))
	}
	hash, err := security.HashPassword(input.Password, p.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	return p.CreateAccountWithHash(ctx, CreateAccountWithHashInput{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
	})
}

func (p *provider) CreateAccountWithHash(ctx context.Context, input CreateAccountWithHashInput) (*models.Account, error) {
	username := strings.TrimSpace(input.Username)
	email := normalizeEmail(input.Email)

	reasons, err := p.identityReasons(ctx, username, email, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.PasswordHash) == "" {
		reasons = append(reasons, "password is required")
	}
	if len(reasons) > 0 {
		return nil, identityFailure(reasons)
	}

	account := &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: input.PasswordHash,
		IsActive:     true,
	}
	if err := p.repo.Create(ctx, account); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, identityFailure([]string{fmt.Sprintf("username '%s' or email '%s' is already taken", username, email)})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
	}
	return account, nil
}

// identityReasons validates username and email shape and uniqueness.
func (p *provider) identityReasons(ctx context.Context, username, email string, exclude uuid.UUID) ([]string, error) {
	var reasons []string
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	switch {
	case username == "":
		reasons = append(reasons, "username is required")
	case !security.ValidUsername(username):
		reasons = append(reasons, fmt.Sprintf("username '%s' is invalid, can only contain letters, digits or -._@+", username))
	default:
		taken, err := p.repo.ExistsOtherWith(ctx, "username", username, exclude)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check username")
		}
		if taken {
			reasons = append(reasons, fmt.Sprintf("username '%s' is already taken", username))
		}
	}

	if email == "" {
		reasons = append(reasons, "email is required")
	} else if err := p.validate.Var(email, "email"); err != nil {
		reasons = append(reasons, fmt.Sprintf("email '%s' is invalid", email))
	} else {
		taken, err := p.repo.ExistsOtherWith(ctx, "email", email, exclude)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email")
		}
		if taken {
			reasons = append(reasons, fmt.Sprintf("email '%s' is already taken", email))
		}
	}
	return reasons, nil
}

func (p *provider) AddToRole(ctx context.Context, accountID uuid.UUID, role enums.Role) error {
	if !role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown role %q", role))
	}
	r, err := p.repo.EnsureRole(ctx, role.String())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load role")
	}
	if err := p.repo.AddRole(ctx, accountID, r.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add role")
	}
	return nil
}

func (p *provider) RemoveFromRole(ctx context.Context, accountID uuid.UUID, role enums.Role) error {
	r, err := p.repo.FindRoleByName(ctx, role.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load role")
	}
	if err := p.repo.RemoveRole(ctx, accountID, r.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove role")
	}
	return nil
}

func (p *provider) RolesFor(ctx context.Context, accountID uuid.UUID) ([]enums.Role, error) {
	names, err := p.repo.RoleNames(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list roles")
	}
	roles := make([]enums.Role, 0, len(names))
	for _, name := range names {
		if role, err := enums.ParseRole(name); err == nil {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (p *provider) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return p.lookup(p.repo.FindByID(ctx, id))
}

func (p *provider) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return p.lookup(p.repo.FindByUsername(ctx, strings.TrimSpace(username)))
}

func (p *provider) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return p.lookup(p.repo.FindByEmail(ctx, normalizeEmail(email)))
}

func (p *provider) lookup(account *models.Account, err error) (*models.Account, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}
	return account, nil
}

func (p *provider) VerifyCredentials(ctx context.Context, username, password string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	account, err := p.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}
	valid, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !account.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if security.NeedsRehash(account.PasswordHash, p.passwordCfg) {
		// a failed upgrade keeps the old hash; the login itself still succeeds
		if hash, err := security.HashPassword(password, p.passwordCfg); err == nil {
			if err := p.repo.UpdatePasswordHash(ctx, account.ID, hash); err == nil {
				account.PasswordHash = hash
			}
		}
	}
	return account, nil
}

func (p *provider) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := p.repo.UpdateLastLogin(ctx, id, at); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	return nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list accounts")
	}
	result := &ListResult{Accounts: make([]AccountDTO, 0, len(rows))}
	for i := range rows {
		result.Accounts = append(result.Accounts, *FromModel(&rows[i]))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateInput) (*AccountDTO, error) {
	desired, err := parseRoles(input.Roles)
	if err != nil {
		return nil, err
	}
	if input.Roles != nil && actor.UserID == id && !containsRole(desired, enums.RoleAdministrator) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cannot remove your own administrator role")
	}

	var updated *models.Account
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		p := s.WithTx(tx).(*provider)
		current, err := p.FindByID(ctx, id)
		if err != nil {
			return err
		}

		username := strings.TrimSpace(input.Username)
		email := normalizeEmail(input.Email)
		reasons, err := p.identityReasons(ctx, username, email, id)
		if err != nil {
			return err
		}
		if len(reasons) > 0 {
			return identityFailure(reasons)
		}

		isActive := current.IsActive
		if input.IsActive != nil {
			isActive = *input.IsActive
		}
		if err := p.repo.UpdateProfile(ctx, id, username, email, isActive); err != nil {
			if db.IsUniqueViolation(err, "") {
				return identityFailure([]string{"username or email is already taken"})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update account")
		}

		if input.Roles != nil {
			toAdd, toRemove := diffRoles(current.RoleNames(), desired)
			for _, role := range toAdd {
				if err := p.AddToRole(ctx, id, role); err != nil {
					return err
				}
			}
			for _, role := range toRemove {
				if err := p.RemoveFromRole(ctx, id, role); err != nil {
					return err
				}
			}
		}

		updated, err = p.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if actor.UserID == id {
		return pkgerrors.New(pkgerrors.CodeConflict, "cannot delete your own account")
	}

	var files []string
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		p := s.WithTx(tx).(*provider)
		account, err := p.FindByID(ctx, id)
		if err != nil {
			return err
		}
		songIDs, paths, err := p.repo.SongFilePaths(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list account songs")
		}
		if _, err := p.repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete account")
		}
		files = paths

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAccountDeleted,
			AggregateType: enums.AggregateAccount,
			AggregateID:   id,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Username: actor.Username, Role: actor.Role.String()},
			Data: payloads.AccountDeletedEvent{
				AccountID:    id,
				Username:     account.Username,
				DeletedSongs: songIDs,
			},
		})
	})
	if err != nil {
		return err
	}

	if s.files == nil {
		return nil
	}
	var cleanupErr error
	for _, ref := range files {
		cleanupErr = multierr.Append(cleanupErr, s.files.Remove(ctx, ref))
	}
	if cleanupErr != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"account_id": id.String(), "files": len(files)})
		s.logg.Error(logCtx, "failed to remove song files of deleted account", cleanupErr)
	}
	return nil
}

// PrimaryRole picks the most privileged role, defaulting to User.
func PrimaryRole(names []string) enums.Role {
	for _, name := range names {
		if name == enums.RoleAdministrator.String() {
			return enums.RoleAdministrator
		}
	}
	return enums.RoleUser
}

func parseRoles(names []string) ([]enums.Role, error) {
	roles := make([]enums.Role, 0, len(names))
	for _, name := range names {
		role, err := enums.ParseRole(strings.TrimSpace(name))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role").
				WithDetails(map[string]any{"roles": fmt.Sprintf("unknown role %q", name)})
		}
		if !containsRole(roles, role) {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func diffRoles(current []string, desired []enums.Role) (toAdd, toRemove []enums.Role) {
	have := make(map[enums.Role]bool, len(current))
	for _, name := range current {
		if role, err := enums.ParseRole(name); err == nil {
			have[role] = true
		}
	}
	want := make(map[enums.Role]bool, len(desired))
	for _, role := range desired {
		want[role] = true
		if !have[role] {
			toAdd = append(toAdd, role)
		}
	}
	for _, role := range enums.AllRoles() {
		if have[role] && !want[role] {
			toRemove = append(toRemove, role)
		}
	}
	return toAdd, toRemove
}

func containsRole(roles []enums.Role, target enums.Role) bool {
	for _, role := range roles {
		if role == target {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
