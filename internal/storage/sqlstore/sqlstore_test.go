package sqlstore

import (
	"context"
	"strings"
	"testing"

	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/chemtech/maintenance-push/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection would otherwise get its own empty database
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	s := New(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func token(seed string) string {
	return seed + strings.Repeat("x", 140)
}

func TestUpsertTokenInsertsThenReassigns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.UpsertToken(ctx, &model.DeviceToken{
		UserID:     1,
		UserType:   model.UserTypeClient,
		Token:      token("A"),
		DeviceInfo: datatypes.JSON(`{"platform":"android"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.True(t, first.IsActive)

	second, err := s.UpsertToken(ctx, &model.DeviceToken{
		UserID:   2,
		UserType: model.UserTypeTechnician,
		Token:    token("A"),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, uint(2), second.UserID)
	assert.Equal(t, model.UserTypeTechnician, second.UserType)
	assert.False(t, second.LastUsedAt.Before(first.LastUsedAt))

	old, err := s.ListActiveTokens(ctx, 1, model.UserTypeClient)
	require.NoError(t, err)
	assert.Empty(t, old)

	current, err := s.ListActiveTokens(ctx, 2, model.UserTypeTechnician)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, token("A"), current[0].Token)
}

func TestListActiveTokensSeparatesUserTypes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, tk := range []*model.DeviceToken{
		{UserID: 5, UserType: model.UserTypeClient, Token: token("c1")},
		{UserID: 5, UserType: model.UserTypeClient, Token: token("c2")},
		{UserID: 5, UserType: model.UserTypeAdmin, Token: token("a1")},
	} {
		_, err := s.UpsertToken(ctx, tk)
		require.NoError(t, err)
	}

	clients, err := s.ListActiveTokens(ctx, 5, model.UserTypeClient)
	require.NoError(t, err)
	assert.Len(t, clients, 2)

	admins, err := s.ListActiveTokens(ctx, 5, model.UserTypeAdmin)
	require.NoError(t, err)
	assert.Len(t, admins, 1)

	none, err := s.ListActiveTokens(ctx, 99, model.UserTypeClient)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteTokens(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.UpsertToken(ctx, &model.DeviceToken{UserID: 1, UserType: model.UserTypeClient, Token: token("keep")})
	require.NoError(t, err)
	_, err = s.UpsertToken(ctx, &model.DeviceToken{UserID: 1, UserType: model.UserTypeClient, Token: token("drop")})
	require.NoError(t, err)

	n, err := s.DeleteTokens(ctx, []string{token("drop"), token("absent")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteTokens(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.GetToken(ctx, token("drop"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetToken(ctx, token("keep"))
	assert.NoError(t, err)
}

func TestScanTokensVisitsEveryRow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 7; i++ {
		_, err := s.UpsertToken(ctx, &model.DeviceToken{
			UserID:   uint(i),
			UserType: model.UserTypeClient,
			Token:    token(string(rune('a' + i))),
		})
		require.NoError(t, err)
	}

	seen := 0
	batches := 0
	err := s.ScanTokens(ctx, 3, func(batch []*model.DeviceToken) error {
		batches++
		seen += len(batch)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, seen)
	assert.Equal(t, 3, batches)
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateUser(ctx, &model.User{Name: "Sara", Email: "sara@example.com", Phone: "0500000001"}))
	err := s.CreateUser(ctx, &model.User{Name: "Dup", Email: "sara@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	exists, err := s.UserExists(ctx, "other@example.com", "0500000001")
	require.NoError(t, err)
	assert.True(t, exists)

	u, err := s.GetUserByEmail(ctx, "sara@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.AuthProviderLocal, u.AuthProvider)

	for i, role := range []model.TeamRole{model.RoleAdmin, model.RoleTechnician, model.RoleAdmin} {
		var email *string
		if i == 0 {
			e := "lead@team.example.com"
			email = &e
		}
		require.NoError(t, s.CreateTeamMember(ctx, &model.TeamMember{
			Name:         "member",
			Email:        email,
			Phone:        "05100000" + string(rune('0'+i)),
			PasswordHash: "x",
			Role:         role,
		}))
	}

	ids, err := s.ListTeamMemberIDsByRole(ctx, model.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	m, err := s.GetTeamMemberByLogin(ctx, "051000001")
	require.NoError(t, err)
	assert.Equal(t, model.RoleTechnician, m.Role)

	lead, err := s.GetTeamMemberByLogin(ctx, "lead@team.example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, lead.Role)

	taken, err := s.TeamMemberExists(ctx, "", "051000002")
	require.NoError(t, err)
	assert.True(t, taken)

	_, err = s.GetTeamMemberByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
