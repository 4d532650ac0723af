package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/chemtech/maintenance-push/internal/logger"
	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/chemtech/maintenance-push/internal/storage"
	"github.com/chemtech/maintenance-push/internal/tokenshape"
	"gorm.io/datatypes"
)

const purgeBatchSize = 500

// PurgeObserver is told how many tokens each cleanup sweep deleted.
type PurgeObserver interface {
	ObservePurged(n int)
}

// TokenService owns the device token lifecycle.
type TokenService struct {
	store    storage.TokenStore
	observer PurgeObserver
	log      *logger.Logger
}

// NewTokenService constructs TokenService.
func NewTokenService(store storage.TokenStore, log *logger.Logger) *TokenService {
	return &TokenService{store: store, log: log.With("component", "tokens")}
}

// SetObserver installs o to receive purge counts.
func (s *TokenService) SetObserver(o PurgeObserver) {
	s.observer = o
}

// SaveToken registers token for the principal. Saving a value that another
// principal already owns moves it to the new owner.
func (s *TokenService) SaveToken(ctx context.Context, userID uint, userType model.UserType, token string, deviceInfo json.RawMessage) (*model.DeviceToken, error) {
	token = strings.TrimSpace(token)
	if err := checkPushToken(token); err != nil {
		return nil, err
	}
	if _, ok := model.ParseUserType(string(userType)); !ok {
		return nil, &ValidationError{Field: "userType", Message: "userType must be client, technician or admin", Reason: ErrInvalidUserType}
	}
	var info datatypes.JSON
	if len(deviceInfo) > 0 && string(deviceInfo) != "null" {
		if !json.Valid(deviceInfo) {
			return nil, invalid("deviceInfo", "deviceInfo must be valid JSON")
		}
		info = datatypes.JSON(deviceInfo)
	}

	if prev, err := s.store.GetToken(ctx, token); err == nil {
		if prev.UserID != userID || prev.UserType != userType {
			s.log.Info("device token changes owner",
				"token", token,
				"fromUser", prev.UserID, "fromType", prev.UserType,
				"toUser", userID, "toType", userType)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, storageErr("lookup token", err)
	}

	saved, err := s.store.UpsertToken(ctx, &model.DeviceToken{
		UserID:     userID,
		UserType:   userType,
		Token:      token,
		DeviceInfo: info,
	})
	if err != nil {
		return nil, storageErr("save token", err)
	}
	s.log.Info("device token saved", "userId", userID, "userType", userType, "token", token)
	return saved, nil
}

func checkPushToken(token string) error {
	switch tokenshape.Classify(token) {
	case tokenshape.KindPushToken:
		return nil
	case tokenshape.KindSessionToken:
		return &ValidationError{
			Field:   "token",
			Message: "received a session (JWT) token instead of a device push token; send the FCM registration token from the device",
			Reason:  ErrInvalidTokenFormat,
		}
	}
	return &ValidationError{
		Field:   "token",
		Message: "invalid push token: expected more than 100 characters of letters, digits, '-' or '_'",
		Reason:  ErrInvalidTokenFormat,
	}
}

// RemoveToken deletes token. Removing an unknown token succeeds.
func (s *TokenService) RemoveToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid("token", "token is required")
	}
	n, err := s.store.DeleteTokens(ctx, []string{token})
	if err != nil {
		return storageErr("remove token", err)
	}
	s.log.Debug("device token removed", "token", token, "rows", n)
	return nil
}

// ListActiveTokens returns the active tokens of one principal.
func (s *TokenService) ListActiveTokens(ctx context.Context, userID uint, userType model.UserType) ([]*model.DeviceToken, error) {
	tokens, err := s.store.ListActiveTokens(ctx, userID, userType)
	if err != nil {
		return nil, storageErr("list active tokens", err)
	}
	return tokens, nil
}

// PurgeInvalid deletes every stored value that no longer classifies as a
// push token.
func (s *TokenService) PurgeInvalid(ctx context.Context) (model.PurgeResult, error) {
	var (
		result model.PurgeResult
		doomed []string
	)
	err := s.store.ScanTokens(ctx, purgeBatchSize, func(batch []*model.DeviceToken) error {
		for _, t := range batch {
			if tokenshape.IsValidPushToken(t.Token) {
				result.KeptCount++
				continue
			}
			doomed = append(doomed, t.ID)
		}
		return nil
	})
	if err != nil {
		return model.PurgeResult{}, storageErr("scan tokens", err)
	}
	for start := 0; start < len(doomed); start += purgeBatchSize {
		end := min(start+purgeBatchSize, len(doomed))
		n, err := s.store.DeleteTokenIDs(ctx, doomed[start:end])
		result.DeletedCount += int(n)
		if err != nil {
			return result, storageErr("delete invalid tokens", err)
		}
	}
	if s.observer != nil {
		s.observer.ObservePurged(result.DeletedCount)
	}
	s.log.Info("token purge finished", "deleted", result.DeletedCount, "kept", result.KeptCount)
	return result, nil
}

// UserTokens lists every token of one principal with the value masked.
func (s *TokenService) UserTokens(ctx context.Context, userID uint, userType model.UserType) ([]model.TokenView, error) {
	tokens, err := s.store.ListUserTokens(ctx, userID, userType)
	if err != nil {
		return nil, storageErr("list user tokens", err)
	}
	views := make([]model.TokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, model.TokenView{
			ID:           t.ID,
			TokenPreview: logger.Mask(t.Token),
			TokenLength:  len(t.Token),
			Kind:         string(tokenshape.Classify(t.Token)),
			IsActive:     t.IsActive,
			LastUsedAt:   t.LastUsedAt,
			CreatedAt:    t.CreatedAt,
		})
	}
	return views, nil
}
