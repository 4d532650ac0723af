package storage

import (
	"context"

	"github.com/chemtech/maintenance-push/internal/model"
)

// TokenStore abstracts device token persistence.
type TokenStore interface {
	// UpsertToken inserts t or, when the token value already exists,
	// reassigns it to t's owner and refreshes its metadata.
	UpsertToken(ctx context.Context, t *model.DeviceToken) (*model.DeviceToken, error)
	GetToken(ctx context.Context, token string) (*model.DeviceToken, error)
	ListActiveTokens(ctx context.Context, userID uint, userType model.UserType) ([]*model.DeviceToken, error)
	ListUserTokens(ctx context.Context, userID uint, userType model.UserType) ([]*model.DeviceToken, error)
	// DeleteTokens removes every record whose value is in tokens and
	// returns the number of rows removed.
	DeleteTokens(ctx context.Context, tokens []string) (int64, error)
	// ScanTokens visits all records in batches; fn may not write to the store.
	ScanTokens(ctx context.Context, batchSize int, fn func([]*model.DeviceToken) error) error
	DeleteTokenIDs(ctx context.Context, ids []string) (int64, error)
}

// AccountStore abstracts client and team-member persistence.
type AccountStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UserExists(ctx context.Context, email, phone string) (bool, error)
	CreateTeamMember(ctx context.Context, m *model.TeamMember) error
	GetTeamMemberByLogin(ctx context.Context, login string) (*model.TeamMember, error)
	TeamMemberExists(ctx context.Context, email, phone string) (bool, error)
	ListTeamMemberIDsByRole(ctx context.Context, role model.TeamRole) ([]uint, error)
}

// LogStore persists dispatch attempts.
type LogStore interface {
	AppendDispatchLog(ctx context.Context, entry *model.DispatchLog) error
	ListDispatchLogs(ctx context.Context) ([]*model.DispatchLog, error)
	Close() error
}
