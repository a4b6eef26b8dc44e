package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/R3E-Network/service_layer/internal/vigilerr"
	"github.com/R3E-Network/service_layer/pkg/version"
)

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes err as {"error": "..."}. If err is a *vigilerr.Error its
// Kind determines the status code, overriding the status argument; this lets
// callers that have already classified their error (e.g. via vigilerr.NotFound)
// pass any placeholder status and have it corrected here.
func writeError(w http.ResponseWriter, status int, err error) {
	var verr *vigilerr.Error
	if errors.As(err, &verr) {
		status = verr.Status()
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}
