package sqlstore

import (
	"context"
	"time"

	"github.com/chemtech/maintenance-push/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var upsertColumns = []string{
	"user_id",
	"user_type",
	"device_info",
	"is_active",
	"last_used_at",
	"updated_at",
}

// UpsertToken writes t keyed by token value in a single statement, so
// concurrent saves of the same value resolve last-write-wins.
func (s *Store) UpsertToken(ctx context.Context, t *model.DeviceToken) (*model.DeviceToken, error) {
	now := time.Now().UTC()
	t.IsActive = true
	t.LastUsedAt = now
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(t).Error
	if err != nil {
		return nil, translate(err)
	}
	// the row id is the existing one when the insert turned into an update
	return s.GetToken(ctx, t.Token)
}

func (s *Store) GetToken(ctx context.Context, token string) (*model.DeviceToken, error) {
	var out model.DeviceToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (s *Store) ListActiveTokens(ctx context.Context, userID uint, userType model.UserType) ([]*model.DeviceToken, error) {
	var out []*model.DeviceToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND user_type = ? AND is_active = ?", userID, userType, true).
		Order("created_at ASC").
		Find(&out).Error
	return out, translate(err)
}

func (s *Store) ListUserTokens(ctx context.Context, userID uint, userType model.UserType) ([]*model.DeviceToken, error) {
	var out []*model.DeviceToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND user_type = ?", userID, userType).
		Order("created_at ASC").
		Find(&out).Error
	return out, translate(err)
}

func (s *Store) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("token IN ?", tokens).Delete(&model.DeviceToken{})
	return res.RowsAffected, translate(res.Error)
}

func (s *Store) DeleteTokenIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.DeviceToken{})
	return res.RowsAffected, translate(res.Error)
}

func (s *Store) ScanTokens(ctx context.Context, batchSize int, fn func([]*model.DeviceToken) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	var batch []*model.DeviceToken
	res := s.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	})
	return translate(res.Error)
}
