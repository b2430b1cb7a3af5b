package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by the account, registration and catalog repositories.
// Built from a transaction handle, every query it issues joins that
// transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

func (b Base) Conn() *gorm.DB {
	return b.db
}

// First loads the first T matching query, eager-loading the named
// associations. gorm.ErrRecordNotFound is returned untouched so callers can
// map it with db.IsNotFound.
func First[T any](ctx context.Context, b Base, preload []string, query string, args ...any) (*T, error) {
	q := b.DB(ctx)
	for _, assoc := range preload {
		q = q.Preload(assoc)
	}
	var row T
	if err := q.Where(query, args...).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Exists reports whether any T matches query.
func Exists[T any](ctx context.Context, b Base, query string, args ...any) (bool, error) {
	var count int64
	if err := b.DB(ctx).Model(new(T)).Where(query, args...).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
