package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"pos-backend/internal/db"
)

// TokenClaims are the JWT claims issued by the password flow.
type TokenClaims struct {
	TenantID    string `json:"tenant_id"`
	IsSuperuser bool   `json:"is_superuser"`
	jwt.RegisteredClaims
}

// AccountService owns tenant registration and user authentication. Tokens
// are signed with the process-wide secret; passwords exist only as bcrypt
// hashes.
type AccountService interface {
	RegisterTenant(ctx context.Context, tenantID, username, password string) (*User, error)
	CreateUser(ctx context.Context, tenantID, username, password string, superuser bool) (*User, error)
	Authenticate(ctx context.Context, tenantID, username, password string) (string, *User, error)
	AuthenticateSuperuser(ctx context.Context, tenantID, username, password string) (string, *User, error)
	VerifyToken(tokenString string) (*TokenClaims, error)
}

type accountService struct {
	gateway     *db.Gateway
	secret      []byte
	tokenExpiry time.Duration
	log         *logrus.Entry
}

func NewAccountService(gateway *db.Gateway, secret string, tokenExpiry time.Duration, log *logrus.Entry) AccountService {
	return &accountService{gateway: gateway, secret: []byte(secret), tokenExpiry: tokenExpiry, log: log}
}

// RegisterTenant creates the tenant schema, records the tenant in the
// commons registry and creates its first superuser.
func (s *accountService) RegisterTenant(ctx context.Context, tenantID, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrValidation.Withf("username and password are required")
	}
	tdb, err := s.gateway.RegisterTenant(ctx, tenantID)
	if err != nil {
		return nil, ErrValidation.WithCause(err)
	}

	tag, err := s.gateway.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.tenants (tenant_id) VALUES ($1) ON CONFLICT (tenant_id) DO NOTHING
	`, s.gateway.CommonsSchema()), tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to register tenant %s: %w", tenantID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyExists.Withf("tenant %s", tenantID)
	}

	return s.createUser(ctx, tdb, username, password, true)
}

func (s *accountService) CreateUser(ctx context.Context, tenantID, username, password string, superuser bool) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrValidation.Withf("username and password are required")
	}
	tdb, err := s.gateway.Tenant(tenantID)
	if err != nil {
		return nil, ErrValidation.WithCause(err)
	}
	return s.createUser(ctx, tdb, username, password, superuser)
}

func (s *accountService) createUser(ctx context.Context, tdb *db.TenantDB, username, password string, superuser bool) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u := &User{Username: username, IsSuperuser: superuser, IsActive: true}
	err = tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (username, password_hash, is_superuser)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO NOTHING
		RETURNING id, created_at
	`, tdb.T("users")), username, string(hash), superuser).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyExists.Withf("user %s", username)
		}
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return u, nil
}

func (s *accountService) getUser(ctx context.Context, tenantID, username string) (*User, error) {
	tdb, err := s.gateway.Tenant(tenantID)
	if err != nil {
		return nil, ErrUnauthorized.WithCause(err)
	}
	u := &User{}
	err = tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT id, username, password_hash, is_superuser, is_active, last_login_at, created_at
		FROM %s WHERE username = $1 AND is_active = true LIMIT 1
	`, tdb.T("users")), username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.IsSuperuser, &u.IsActive, &u.LastLoginAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound.Withf("user %s", username)
		}
		return nil, fmt.Errorf("failed to fetch user %s: %w", username, err)
	}
	return u, nil
}

// Authenticate checks credentials and issues a signed token. The last-login
// update is best effort.
func (s *accountService) Authenticate(ctx context.Context, tenantID, username, password string) (string, *User, error) {
	u, err := s.getUser(ctx, tenantID, username)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return "", nil, ErrUnauthorized.Withf("unknown user")
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrUnauthorized.Withf("password mismatch")
	}

	if tdb, terr := s.gateway.Tenant(tenantID); terr == nil {
		if _, uerr := tdb.Pool().Exec(ctx, fmt.Sprintf(
			"UPDATE %s SET last_login_at = NOW() WHERE id = $1", tdb.T("users")), u.ID); uerr != nil {
			s.log.WithError(uerr).Warn("failed to record last login")
		}
	}

	token, err := s.issueToken(tenantID, u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// AuthenticateSuperuser is Authenticate restricted to superusers. The user
// is checked for existence before any field access.
func (s *accountService) AuthenticateSuperuser(ctx context.Context, tenantID, username, password string) (string, *User, error) {
	token, u, err := s.Authenticate(ctx, tenantID, username, password)
	if err != nil {
		return "", nil, err
	}
	if u == nil || !u.IsSuperuser {
		return "", nil, ErrUnauthorized.Withf("superuser required")
	}
	return token, u, nil
}

func (s *accountService) issueToken(tenantID string, u *User) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		TenantID:    tenantID,
		IsSuperuser: u.IsSuperuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// VerifyToken parses and validates a bearer token.
func (s *accountService) VerifyToken(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized.Withf("invalid token")
	}
	if !db.ValidTenantID(claims.TenantID) {
		return nil, ErrUnauthorized.Withf("invalid tenant claim")
	}
	return claims, nil
}
