// Package domain holds Vigil's core entity types, shared by the storage and
// service layers.
package domain

import "time"

// Project is the top-level tenant boundary: every trace, span, alert, replay
// run, and notification belongs to exactly one project.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// APIKey authenticates ingestion and API traffic on behalf of a Project.
// Rotating a project's key deactivates every prior key rather than deleting
// it, so past usage remains attributable.
type APIKey struct {
	ID            string
	ProjectID     string
	Name          string
	Key           string
	Active        bool
	CreatedAt     time.Time
	DeactivatedAt *time.Time
}

// ProjectSettings holds per-project configuration: encrypted LLM provider
// keys and drift-detection window sizes. Created lazily on first access.
type ProjectSettings struct {
	ProjectID                 string
	ProviderKeys              map[string]string // provider name -> encrypted key ciphertext
	DefaultModels             map[string]string // provider name -> default model
	PSIBaselineWindow         int
	PSICurrentWindow          int
	DriftThresholds           map[string]float64 // metric -> PSI threshold override
	DriftCheckEnabled         bool
	DriftCheckIntervalMinutes int
	UpdatedAt                 time.Time
}

// DefaultProjectSettings returns the settings a project receives the first
// time it is accessed, before any explicit configuration.
func DefaultProjectSettings(projectID string) ProjectSettings {
	return ProjectSettings{
		ProjectID:                 projectID,
		ProviderKeys:              map[string]string{},
		DefaultModels:             map[string]string{},
		PSIBaselineWindow:         100,
		PSICurrentWindow:          20,
		DriftThresholds:           map[string]float64{},
		DriftCheckEnabled:         true,
		DriftCheckIntervalMinutes: 1,
	}
}

// MaskKey returns a display-safe form of a decrypted provider key: the first
// six characters followed by a fixed mask, or a fully masked string if the
// key is shorter than eight characters.
func MaskKey(key string) string {
	if len(key) < 8 {
		return "****"
	}
	return key[:6] + "****"
}
