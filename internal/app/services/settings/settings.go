// Package settings manages per-project configuration, including encrypted
// LLM provider API keys used by the replay engine.
package settings

import (
	"context"
	"fmt"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/services/llm"
	"github.com/R3E-Network/service_layer/internal/app/storage"
	"github.com/R3E-Network/service_layer/internal/crypto"
)

// Service reads and writes ProjectSettings, encrypting provider API keys at
// rest with a single server-wide key.
type Service struct {
	store      storage.ProjectStore
	encryptKey []byte
}

// New constructs a Service. encryptKey must be 16, 24 or 32 bytes (AES-128/192/256).
func New(store storage.ProjectStore, encryptKey []byte) *Service {
	return &Service{store: store, encryptKey: encryptKey}
}

// Get returns a project's settings, or the defaults when none are stored yet;
// Get itself does not store the defaults.
func (s *Service) Get(ctx context.Context, projectID string) (domain.ProjectSettings, error) {
	settings, err := s.store.GetSettings(ctx, projectID)
	if err != nil {
		if err == storage.ErrNotFound {
			return domain.DefaultProjectSettings(projectID), nil
		}
		return domain.ProjectSettings{}, err
	}
	return settings, nil
}

// SetProviderKey encrypts and stores a provider's API key.
func (s *Service) SetProviderKey(ctx context.Context, projectID, provider, apiKey string) error {
	settings, err := s.Get(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	ciphertext, err := crypto.Encrypt(s.encryptKey, []byte(apiKey))
	if err != nil {
		return fmt.Errorf("encrypt provider key: %w", err)
	}
	if settings.ProviderKeys == nil {
		settings.ProviderKeys = map[string]string{}
	}
	settings.ProviderKeys[provider] = string(ciphertext)
	return s.store.PutSettings(ctx, settings)
}

// UpdateWindows overrides the PSI baseline/current window sizes.
func (s *Service) UpdateWindows(ctx context.Context, projectID string, baseline, current int) error {
	settings, err := s.Get(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if baseline > 0 {
		settings.PSIBaselineWindow = baseline
	}
	if current > 0 {
		settings.PSICurrentWindow = current
	}
	return s.store.PutSettings(ctx, settings)
}

// UpdateDriftCheck overrides the per-project drift scheduler gating: whether
// drift checks run at all, and how often.
func (s *Service) UpdateDriftCheck(ctx context.Context, projectID string, enabled *bool, intervalMinutes int) error {
	settings, err := s.Get(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if enabled != nil {
		settings.DriftCheckEnabled = *enabled
	}
	if intervalMinutes > 0 {
		settings.DriftCheckIntervalMinutes = intervalMinutes
	}
	return s.store.PutSettings(ctx, settings)
}

// ResolveCredentials implements replay.CredentialResolver: it decrypts the
// stored API key for the given provider.
func (s *Service) ResolveCredentials(ctx context.Context, projectID string, provider llm.Provider) (llm.Credentials, error) {
	settings, err := s.Get(ctx, projectID)
	if err != nil {
		return llm.Credentials{}, fmt.Errorf("load settings: %w", err)
	}
	ciphertext, ok := settings.ProviderKeys[string(provider)]
	if !ok {
		return llm.Credentials{}, fmt.Errorf("no API key configured for provider %q", provider)
	}
	plaintext, err := crypto.Decrypt(s.encryptKey, []byte(ciphertext))
	if err != nil {
		return llm.Credentials{}, fmt.Errorf("decrypt provider key: %w", err)
	}
	return llm.Credentials{APIKey: string(plaintext)}, nil
}
