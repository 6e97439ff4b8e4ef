package handlers

import (
	"net/http"

	"github.com/clio-labs/chronotex/internal/api"
	"github.com/clio-labs/chronotex/internal/service"
)

type SettingsProvider interface {
	Get() service.Settings
}

type SettingsHandler struct {
	svc SettingsProvider
}

func NewSettingsHandler(svc SettingsProvider) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// Get handles GET /api/config
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.svc.Get())
}
