package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/R3E-Network/service_layer/internal/app/storage"
)

// defaultProjectID is the project a dashboard session resolves to when its
// JWT carries no project_id claim (an ordinary login token, as opposed to a
// short-lived project-scoped websocket token) and when the shared
// development API key is presented verbatim.
const defaultProjectID = "default"

// ProjectResolver resolves the project a bearer token grants access to,
// trying each leg of the chain in order: a JWT (project-scoped tokens yield
// their claim, ordinary session tokens yield defaultProjectID), then the
// configured development API key (active only when devKey is non-empty, and
// also resolves to defaultProjectID), then a database-stored APIKey.
type ProjectResolver struct {
	jwt    *Manager
	keys   storage.APIKeyStore
	devKey string
}

// NewProjectResolver constructs a ProjectResolver. devKey may be empty to
// disable the development bypass leg entirely.
func NewProjectResolver(jwtManager *Manager, keys storage.APIKeyStore, devKey string) *ProjectResolver {
	return &ProjectResolver{jwt: jwtManager, keys: keys, devKey: strings.TrimSpace(devKey)}
}

// Resolve returns the project ID authorised by token.
func (r *ProjectResolver) Resolve(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("auth: no token provided")
	}

	if r.jwt != nil {
		if claims, err := r.jwt.ValidateToken(token); err == nil {
			if claims.ProjectID != "" {
				return claims.ProjectID, nil
			}
			return defaultProjectID, nil
		}
	}

	if r.devKey != "" && token == r.devKey {
		return defaultProjectID, nil
	}

	key, err := r.keys.GetAPIKeyByValue(ctx, token)
	if err != nil {
		return "", fmt.Errorf("auth: token not recognised")
	}
	return key.ProjectID, nil
}
