package sqlstore

import (
	"context"

	"github.com/chemtech/maintenance-push/internal/model"
)

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.AuthProvider == "" {
		u.AuthProvider = model.AuthProviderLocal
	}
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UserExists reports whether a client already uses email or a non-empty phone.
func (s *Store) UserExists(ctx context.Context, email, phone string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email)
	if phone != "" {
		q = q.Or("phone = ?", phone)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (s *Store) CreateTeamMember(ctx context.Context, m *model.TeamMember) error {
	return translate(s.db.WithContext(ctx).Create(m).Error)
}

// GetTeamMemberByLogin finds a team member by email or phone.
func (s *Store) GetTeamMemberByLogin(ctx context.Context, login string) (*model.TeamMember, error) {
	var m model.TeamMember
	err := s.db.WithContext(ctx).
		Where("email = ? OR phone = ?", login, login).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// TeamMemberExists reports whether phone or a non-empty email is taken.
func (s *Store) TeamMemberExists(ctx context.Context, email, phone string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&model.TeamMember{}).Where("phone = ?", phone)
	if email != "" {
		q = q.Or("email = ?", email)
	}
	var n int64
	err := q.Count(&n).Error
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (s *Store) ListTeamMemberIDsByRole(ctx context.Context, role model.TeamRole) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.TeamMember{}).
		Where("role = ?", role).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, translate(err)
}
