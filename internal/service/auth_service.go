package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/chemtech/maintenance-push/internal/config"
	"github.com/chemtech/maintenance-push/internal/crypto"
	"github.com/chemtech/maintenance-push/internal/logger"
	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/chemtech/maintenance-push/internal/storage"
	"github.com/golang-jwt/jwt/v5"
)

// RoleClient is the session role of client accounts.
const RoleClient = "client"

const minPasswordLength = 6

// AuthService handles client and team-member authentication.
type AuthService struct {
	accounts   storage.AccountStore
	tokens     *TokenService
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	log        *logger.Logger
}

// Claims represents JWT payload.
type Claims struct {
	ID    uint   `json:"id"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserType maps the session role onto the token owner type.
func (c *Claims) UserType() model.UserType {
	return model.TeamRole(c.Role).UserType()
}

// IsAdmin reports whether the session belongs to an admin.
func (c *Claims) IsAdmin() bool {
	return c.Role == string(model.RoleAdmin)
}

// RegisterRequest is the client sign-up payload.
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginRequest carries credentials and an optional push token to register.
type LoginRequest struct {
	Login      string          `json:"-"`
	Password   string          `json:"password"`
	FCMToken   string          `json:"fcmToken"`
	DeviceInfo json.RawMessage `json:"deviceInfo"`
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token            string `json:"token"`
	User             any    `json:"user"`
	DeviceTokenSaved bool   `json:"deviceTokenSaved"`
}

// TeamMemberRequest is the payload for adding a team member.
type TeamMemberRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// NewAuthService builds AuthService from config. An empty JWT secret is
// replaced with a random one, which invalidates sessions on restart.
func NewAuthService(cfg *config.Config, accounts storage.AccountStore, tokens *TokenService, log *logger.Logger) (*AuthService, error) {
	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		generated, err := crypto.GenerateString(48)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		secret = generated
		log.Warn("auth.jwt_secret is empty, using an ephemeral secret")
	}
	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &AuthService{
		accounts:   accounts,
		tokens:     tokens,
		secret:     []byte(secret),
		ttl:        ttl,
		bcryptCost: cfg.Auth.BcryptCost,
		log:        log.With("component", "auth"),
	}, nil
}

// RegisterClient creates a local client account.
func (a *AuthService) RegisterClient(ctx context.Context, req RegisterRequest) (*model.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	switch {
	case req.Name == "":
		return nil, invalid("name", "name is required")
	case !validEmail(req.Email):
		return nil, invalid("email", "a valid email is required")
	case len(req.Password) < minPasswordLength:
		return nil, invalid("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	case req.Password != req.ConfirmPassword:
		return nil, invalid("confirmPassword", "password mismatch")
	}

	exists, err := a.accounts.UserExists(ctx, req.Email, req.Phone)
	if err != nil {
		return nil, storageErr("check user", err)
	}
	if exists {
		return nil, invalid("email", "email or phone already registered")
	}
	hash, err := crypto.HashPassword(req.Password, a.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		AuthProvider: model.AuthProviderLocal,
	}
	if err := a.accounts.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, invalid("email", "email or phone already registered")
		}
		return nil, storageErr("create user", err)
	}
	a.log.Info("client registered", "userId", user.ID)
	return user, nil
}

// LoginClient authenticates a client by email.
func (a *AuthService) LoginClient(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := normalizeEmail(req.Login)
	if email == "" || req.Password == "" {
		return nil, invalid("email", "email and password are required")
	}
	user, err := a.accounts.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, storageErr("load user", err)
	}
	if !crypto.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrUnauthorized
	}
	token, err := a.issue(user.ID, RoleClient, user.Email)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:            token,
		User:             user,
		DeviceTokenSaved: a.saveLoginToken(ctx, user.ID, model.UserTypeClient, req),
	}, nil
}

// LoginTeamMember authenticates a team member by email or phone.
func (a *AuthService) LoginTeamMember(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	login := strings.TrimSpace(req.Login)
	if login == "" || req.Password == "" {
		return nil, invalid("emailOrPhone", "email/phone and password are required")
	}
	member, err := a.accounts.GetTeamMemberByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, storageErr("load team member", err)
	}
	if !crypto.CheckPassword(member.PasswordHash, req.Password) {
		return nil, ErrUnauthorized
	}
	email := ""
	if member.Email != nil {
		email = *member.Email
	}
	token, err := a.issue(member.ID, string(member.Role), email)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:            token,
		User:             member,
		DeviceTokenSaved: a.saveLoginToken(ctx, member.ID, member.Role.UserType(), req),
	}, nil
}

// saveLoginToken registers the push token sent along with a login. Any
// failure is logged and the login still succeeds.
func (a *AuthService) saveLoginToken(ctx context.Context, userID uint, userType model.UserType, req LoginRequest) bool {
	if strings.TrimSpace(req.FCMToken) == "" || a.tokens == nil {
		return false
	}
	if _, err := a.tokens.SaveToken(ctx, userID, userType, req.FCMToken, req.DeviceInfo); err != nil {
		a.log.Warn("could not save push token during login", "userId", userID, "userType", userType, "error", err)
		return false
	}
	return true
}

// AddTeamMember creates an admin, technician or reviewer account.
func (a *AuthService) AddTeamMember(ctx context.Context, req TeamMemberRequest) (*model.TeamMember, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = normalizeEmail(req.Email)
	role := model.TeamRole(strings.ToLower(strings.TrimSpace(req.Role)))
	switch {
	case req.Name == "" || req.Phone == "" || req.Password == "" || req.Role == "":
		return nil, invalid("", "name, password, phone and role are required")
	case !role.Valid():
		return nil, invalid("role", "invalid role")
	case req.Email != "" && !validEmail(req.Email):
		return nil, invalid("email", "invalid email")
	case len(req.Password) < minPasswordLength:
		return nil, invalid("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	exists, err := a.accounts.TeamMemberExists(ctx, req.Email, req.Phone)
	if err != nil {
		return nil, storageErr("check team member", err)
	}
	if exists {
		return nil, invalid("phone", "phone or email already exists")
	}
	hash, err := crypto.HashPassword(req.Password, a.bcryptCost)
	if err != nil {
		return nil, err
	}
	member := &model.TeamMember{
		Name:         req.Name,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         role,
	}
	if req.Email != "" {
		member.Email = &req.Email
	}
	if err := a.accounts.CreateTeamMember(ctx, member); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, invalid("phone", "phone or email already exists")
		}
		return nil, storageErr("create team member", err)
	}
	a.log.Info("team member added", "memberId", member.ID, "role", member.Role)
	return member, nil
}

func (a *AuthService) issue(id uint, role, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:    id,
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Validate parses a token and returns its claims if valid.
func (a *AuthService) Validate(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims, ok := parsed.Claims.(*Claims); ok && parsed.Valid {
		return claims, nil
	}
	return nil, ErrUnauthorized
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
