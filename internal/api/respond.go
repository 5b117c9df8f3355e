package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/quarantine"
	"github.com/ruslano69/tdtp-migrator/pkg/runner"
	"github.com/ruslano69/tdtp-migrator/pkg/security"
	"github.com/ruslano69/tdtp-migrator/pkg/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeFailure переводит ошибки домена в HTTP-статусы. Неизвестная ошибка
// считается сбоем обращения к БД и пишется в лог.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, security.ErrUnsafeSQL),
		errors.Is(err, runner.ErrInvalidJob),
		errors.Is(err, quarantine.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, adapters.ErrUnknownProfile):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

// queryInt читает необязательный целый параметр; nil - параметра нет
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New(name + " must be an integer")
	}
	return &n, nil
}

func queryIntDefault(r *http.Request, name string, def int) (int, error) {
	n, err := queryInt(r, name)
	if err != nil || n == nil {
		return def, err
	}
	return *n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New(name + " must be a boolean")
	}
	return b, nil
}
