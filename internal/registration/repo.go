package registration

import (
	"context"

	"github.com/angelmondragon/musicportal-backend/internal/repo"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists registration requests.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, req *models.RegistrationRequest) error {
	return r.DB(ctx).Create(req).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RegistrationRequest, error) {
	return repo.First[models.RegistrationRequest](ctx, r.Base, nil, "id = ?", id)
}

// MarkApproved flips a pending request to approved. It returns false when the
// request was already processed (or no longer exists), which makes it the
// single check-and-set guarding against double approval.
func (r *Repository) MarkApproved(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).
		Model(&models.RegistrationRequest{}).
		Where("id = ? AND is_processed = ?", id, false).
		Updates(map[string]any{"is_processed": true, "is_approved": true})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.RegistrationRequest{})
	return res.RowsAffected, res.Error
}

// ListPending returns unprocessed requests oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]models.RegistrationRequest, error) {
	var rows []models.RegistrationRequest
	err := r.DB(ctx).
		Where("is_processed = ?", false).
		Order("request_date ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListAll(ctx context.Context) ([]models.RegistrationRequest, error) {
	var rows []models.RegistrationRequest
	err := r.DB(ctx).
		Order("request_date ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) PendingExists(ctx context.Context, username string) (bool, error) {
	return repo.Exists[models.RegistrationRequest](ctx, r.Base, "username = ? AND is_processed = ?", username, false)
}
