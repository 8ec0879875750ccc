package account

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shakhawat2680/autoseo/internal/auth"
	"github.com/shakhawat2680/autoseo/internal/httpserver"
	"github.com/shakhawat2680/autoseo/pkg/apierr"
)

// Handler provides the HTTP surface for the tenant account views: usage,
// billing history, and the dashboard (spec §6).
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates an account Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with every account route mounted. Callers
// mount this at the API root alongside auth.Gate, since these routes are
// top-level in spec §6 (not nested under /tenants).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/usage", h.handleUsage)
	r.Get("/billing/history", h.handleBillingHistory)
	r.Get("/dashboard", h.handleDashboard)
	return r
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, string(apierr.KindInvalidCredential), "missing authentication")
		return
	}

	usage, err := h.service.Usage(r.Context(), id.TenantID)
	if err != nil {
		h.logger.Error("fetching usage", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to fetch usage")
		return
	}

	httpserver.Respond(w, http.StatusOK, usage)
}

func (h *Handler) handleBillingHistory(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, string(apierr.KindInvalidCredential), "missing authentication")
		return
	}

	history, err := h.service.BillingHistory(r.Context(), id.TenantID)
	if err != nil {
		h.logger.Error("fetching billing history", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to fetch billing history")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"history": history, "count": len(history)})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, string(apierr.KindInvalidCredential), "missing authentication")
		return
	}

	dash, err := h.service.Dashboard(r.Context(), id.TenantID)
	if err != nil {
		h.logger.Error("building dashboard", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to build dashboard")
		return
	}

	httpserver.Respond(w, http.StatusOK, dash)
}
