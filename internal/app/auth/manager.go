// Package auth implements Vigil's authentication: bcrypt password hashing
// for dashboard users, HS256 JWTs for sessions, and the JWT -> dev API key
// -> database API key resolution chain used to scope a request to a
// project.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims are the JWT claims Vigil issues on login. Subject is the user ID;
// ProjectID is only set for tokens scoped to a single project (e.g. a
// short-lived websocket token), and is empty for ordinary dashboard sessions.
type Claims struct {
	jwt.RegisteredClaims
	ProjectID string `json:"project_id,omitempty"`
}

// Manager issues and validates JWTs and hashes/verifies user passwords.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager constructs a Manager. ttl is the lifetime of issued tokens.
func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// IssueToken signs a session token for userID.
func (m *Manager) IssueToken(userID string) (string, error) {
	return m.issue(userID, "")
}

// IssueProjectToken signs a token scoped to one project, for short-lived use
// such as authenticating a websocket connection via a query parameter.
func (m *Manager) IssueProjectToken(userID, projectID string) (string, error) {
	return m.issue(userID, projectID)
}

func (m *Manager) issue(userID, projectID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		ProjectID: projectID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a JWT, returning its claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
