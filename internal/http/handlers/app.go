// Package handlers contains the HTTP handlers for the job API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"shortform/internal/control"
	"shortform/internal/domain"
	"shortform/internal/pipeline"
)

type App struct {
	Control *control.Service
	Logger  zerolog.Logger
}

func NewApp(ctl *control.Service, logger zerolog.Logger) *App {
	return &App{Control: ctl, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// fail maps domain errors onto HTTP responses.
func (a *App) fail(w http.ResponseWriter, err error) {
	var precondition *pipeline.PreconditionError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrInvalidVariant), errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrJobNotResumable), errors.Is(err, domain.ErrJobInProgress):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.As(err, &precondition):
		a.error(w, http.StatusConflict, "precondition_failed", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("handlers: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
