package httpapi

import (
	"fmt"
	"strconv"
	"strings"

	core "github.com/R3E-Network/service_layer/internal/app/core/service"
)

// parseLimitParam parses the "limit" query parameter, rejecting anything
// outside (0, core.MaxListLimit] with an error the caller should surface as
// 422 rather than silently clamping it.
func parseLimitParam(raw string, defaultLimit int) (int, error) {
	def := core.DefaultListLimit
	if defaultLimit > 0 {
		def = defaultLimit
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if parsed > core.MaxListLimit {
		return 0, fmt.Errorf("limit must not exceed %d", core.MaxListLimit)
	}
	return parsed, nil
}
