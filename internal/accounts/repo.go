package accounts

import (
	"context"
	"time"

	"github.com/angelmondragon/musicportal-backend/internal/repo"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/angelmondragon/musicportal-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes account and role persistence.
type Repository struct {
	repo.Base
}

// NewRepository constructs an accounts repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, account *models.Account) error {
	return r.DB(ctx).Omit("Roles").Create(account).Error
}

var withRoles = []string{"Roles"}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return repo.First[models.Account](ctx, r.Base, withRoles, "id = ?", id)
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return repo.First[models.Account](ctx, r.Base, withRoles, "username = ?", username)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return repo.First[models.Account](ctx, r.Base, withRoles, "email = ?", email)
}

// ExistsOtherWith reports whether another account already uses the username
// or email. exclude may be uuid.Nil on create.
func (r *Repository) ExistsOtherWith(ctx context.Context, column, value string, exclude uuid.UUID) (bool, error) {
	var count int64
	q := r.DB(ctx).Model(&models.Account{}).Where(column+" = ?", value)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) FindRoleByName(ctx context.Context, name string) (*models.Role, error) {
	return repo.First[models.Role](ctx, r.Base, nil, "name = ?", name)
}

// EnsureRole creates the role when missing and returns it.
func (r *Repository) EnsureRole(ctx context.Context, name string) (*models.Role, error) {
	role := models.Role{Name: name}
	if err := r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&role).Error; err != nil {
		return nil, err
	}
	return r.FindRoleByName(ctx, name)
}

func (r *Repository) AddRole(ctx context.Context, accountID, roleID uuid.UUID) error {
	link := models.AccountRole{AccountID: accountID, RoleID: roleID}
	return r.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
}

func (r *Repository) RemoveRole(ctx context.Context, accountID, roleID uuid.UUID) error {
	return r.DB(ctx).
		Where("account_id = ? AND role_id = ?", accountID, roleID).
		Delete(&models.AccountRole{}).Error
}

func (r *Repository) RoleNames(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	var names []string
	err := r.DB(ctx).
		Table("roles").
		Select("roles.name").
		Joins("JOIN account_roles ar ON ar.role_id = roles.id").
		Where("ar.account_id = ?", accountID).
		Order("roles.name ASC").
		Pluck("roles.name", &names).Error
	return names, err
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.DB(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
}

// UpdateProfile writes the mutable columns of an account.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, username, email string, isActive bool) error {
	return r.DB(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"username":   username,
			"email":      email,
			"is_active":  isActive,
			"updated_at": time.Now().UTC(),
		}).Error
}

// List returns accounts ordered newest first using keyset pagination.
func (r *Repository) List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Account, *pagination.Cursor, error) {
	limit = pagination.NormalizeLimit(limit)

	q := r.DB(ctx).Preload("Roles").Order("created_at DESC").Order("id DESC").Limit(limit + 1)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Account
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) <= limit {
		return rows, nil, nil
	}
	rows = rows[:limit]
	last := rows[len(rows)-1]
	return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

// SongFilePaths lists the file references of every song owned by the account.
func (r *Repository) SongFilePaths(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, []string, error) {
	var rows []models.Song
	if err := r.DB(ctx).Select("id", "file_path").Where("owner_id = ?", ownerID).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	paths := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
		paths = append(paths, row.FilePath)
	}
	return ids, paths, nil
}

// Delete removes the account; roles links and songs cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Account{})
	return res.RowsAffected, res.Error
}
