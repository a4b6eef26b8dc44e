package httpapi

import (
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/crypto"
	"github.com/R3E-Network/service_layer/internal/vigilerr"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createProjectResponse struct {
	Project domain.Project `json:"project"`
	APIKey  string         `json:"api_key"`
}

// projects handles the collection endpoint: POST creates a project and its
// first API key, GET lists every project (a guest-accessible endpoint).
func (h *Handler) projects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createProject(w, r)
	case http.MethodGet:
		h.listProjects(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	}
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, errors.New("name is required"))
		return
	}

	project, err := h.app.Store.CreateProject(r.Context(), domain.Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to create project"))
		return
	}

	key, err := issueAPIKey(h, r, project.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, createProjectResponse{Project: project, APIKey: key.Key})
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to list projects"))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// projectResource handles /v1/projects/{id}, /v1/projects/{id}/rotate-key,
// and /v1/projects/{id}/settings.
func (h *Handler) projectResource(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, "/v1/projects/")
	if len(segments) == 0 {
		writeError(w, http.StatusNotFound, errMissingID)
		return
	}
	id := segments[0]

	switch {
	case len(segments) == 1:
		h.projectDetail(w, r, id)
	case len(segments) == 2 && segments[1] == "rotate-key":
		h.rotateKey(w, r, id)
	case len(segments) == 2 && segments[1] == "settings":
		h.projectSettings(w, r, id)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown project route"))
	}
}

func (h *Handler) projectDetail(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	project, err := h.app.Store.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, vigilerr.NotFound("project", id))
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) rotateKey(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	if _, err := h.app.Store.GetProject(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, vigilerr.NotFound("project", id))
		return
	}
	if err := h.app.Store.DeactivateProjectKeys(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to deactivate prior keys"))
		return
	}
	key, err := issueAPIKey(h, r, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"api_key": key.Key})
}

func (h *Handler) projectSettings(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		settings, err := h.app.Settings.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, vigilerr.NotFound("project", id))
			return
		}
		writeJSON(w, http.StatusOK, maskedSettings(settings))
	case http.MethodPut:
		var req updateSettingsRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		if req.ProviderKey != nil && req.Provider != "" {
			if err := h.app.Settings.SetProviderKey(r.Context(), id, req.Provider, *req.ProviderKey); err != nil {
				writeError(w, http.StatusInternalServerError, errors.New("failed to store provider key"))
				return
			}
		}
		if req.PSIBaselineWindow > 0 || req.PSICurrentWindow > 0 {
			if err := h.app.Settings.UpdateWindows(r.Context(), id, req.PSIBaselineWindow, req.PSICurrentWindow); err != nil {
				writeError(w, http.StatusInternalServerError, errors.New("failed to update settings"))
				return
			}
		}
		if req.DriftCheckEnabled != nil || req.DriftCheckIntervalMinutes > 0 {
			if err := h.app.Settings.UpdateDriftCheck(r.Context(), id, req.DriftCheckEnabled, req.DriftCheckIntervalMinutes); err != nil {
				writeError(w, http.StatusInternalServerError, errors.New("failed to update drift check settings"))
				return
			}
		}
		settings, err := h.app.Settings.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, errors.New("failed to reload settings"))
			return
		}
		writeJSON(w, http.StatusOK, maskedSettings(settings))
	default:
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	}
}

type updateSettingsRequest struct {
	Provider                  string  `json:"provider,omitempty"`
	ProviderKey               *string `json:"provider_key,omitempty"`
	PSIBaselineWindow         int     `json:"psi_baseline_window,omitempty"`
	PSICurrentWindow          int     `json:"psi_current_window,omitempty"`
	DriftCheckEnabled         *bool   `json:"drift_check_enabled,omitempty"`
	DriftCheckIntervalMinutes int     `json:"drift_check_interval_minutes,omitempty"`
}

// maskedSettings never returns decrypted provider key ciphertext to the
// client; each configured provider is reported only as present.
func maskedSettings(s domain.ProjectSettings) map[string]any {
	providers := make(map[string]bool, len(s.ProviderKeys))
	for provider := range s.ProviderKeys {
		providers[provider] = true
	}
	return map[string]any{
		"project_id":                   s.ProjectID,
		"providers_configured":         providers,
		"psi_baseline_window":          s.PSIBaselineWindow,
		"psi_current_window":           s.PSICurrentWindow,
		"drift_thresholds":             s.DriftThresholds,
		"default_models":               s.DefaultModels,
		"drift_check_enabled":          s.DriftCheckEnabled,
		"drift_check_interval_minutes": s.DriftCheckIntervalMinutes,
	}
}

func issueAPIKey(h *Handler, r *http.Request, projectID string) (domain.APIKey, error) {
	raw, err := crypto.GenerateRandomBytes(24)
	if err != nil {
		return domain.APIKey{}, errors.New("failed to generate API key")
	}
	name := "default"
	var req struct {
		Name string `json:"name"`
	}
	if decodeJSON(r.Body, &req) == nil && req.Name != "" {
		name = req.Name
	}
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		Key:       "vgl_" + hex.EncodeToString(raw),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	return h.app.Store.CreateAPIKey(r.Context(), key)
}
