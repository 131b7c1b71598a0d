package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/dashboard"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/returns"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

var (
	ErrUnknownAction    = errors.New("unknown row action")
	ErrUnknownSortField = errors.New("unknown sort field")
	ErrBadRequest       = errors.New("bad request")
	ErrUnknownRow       = errors.New("row is not loaded")
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, returns.ErrNoDocument), errors.Is(err, ErrUnknownRow):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrInvalidTab),
		errors.Is(err, ErrUnknownAction),
		errors.Is(err, ErrUnknownSortField),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, returns.ErrUnknownCollection):
		return http.StatusBadRequest
	case errors.Is(err, returns.ErrInvalidTransition),
		errors.Is(err, returns.ErrAlreadyAttached),
		errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, returns.ErrFilesDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
