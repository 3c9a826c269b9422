package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"respira-data/internal/domain"
	"respira-data/internal/ingest"
	"respira-data/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail is the error envelope every non-200 response uses.
func fail(message string) map[string]any {
	return map[string]any{"success": false, "message": message}
}

// errorResponse maps the service error taxonomy onto an HTTP status and
// error envelope.
func errorResponse(err error) (int, map[string]any) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, fail(validation.Message)
	}
	var decode *ingest.DecodeError
	if errors.As(err, &decode) {
		return http.StatusBadRequest, fail(decode.Error())
	}
	if errors.Is(err, service.ErrStoreUnavailable) {
		return http.StatusServiceUnavailable, fail("Database unavailable")
	}
	return http.StatusInternalServerError, fail("Internal server error")
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	writeJSON(w, status, body)
}

func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
