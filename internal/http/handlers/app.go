package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"cgigen/internal/domain"
	"cgigen/internal/infra"
	"cgigen/internal/middleware"
	"cgigen/internal/pipeline"
)

// App bundles the handlers' dependencies.
type App struct {
	Logger    infra.Logger
	Users     domain.UserRepository
	Ledger    domain.CreditLedger
	Pipeline  *pipeline.Service
	JWTSecret string
	TokenTTL  time.Duration
}

// NewApp builds the handler container.
func NewApp(logger infra.Logger, users domain.UserRepository, ledger domain.CreditLedger, pipe *pipeline.Service, jwtSecret string) *App {
	return &App{
		Logger:    logger,
		Users:     users,
		Ledger:    ledger,
		Pipeline:  pipe,
		JWTSecret: jwtSecret,
		TokenTTL:  24 * time.Hour,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// Health reports service liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
