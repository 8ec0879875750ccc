package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shakhawat2680/autoseo/internal/httpserver"
	"github.com/shakhawat2680/autoseo/pkg/apierr"
	"github.com/shakhawat2680/autoseo/pkg/billing"
)

// Handler provides the admin HTTP surface (spec §6, routes guarded by
// internal/auth.AdminGate).
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates an admin Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with every admin route mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/billing/reset", h.handleBillingReset)
	r.Post("/tenants/{id}/plan", h.handleChangePlan)
	r.Get("/revenue", h.handleRevenue)
	return r
}

func (h *Handler) handleBillingReset(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ForceResetAll(r.Context())
	if err != nil {
		h.logger.Error("force reset all", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to reset billing cycles")
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

type changePlanRequest struct {
	PlanID    string  `json:"plan_id" validate:"required"`
	CycleKind *string `json:"cycle_kind,omitempty"`
}

func (h *Handler) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid tenant id")
		return
	}

	var req changePlanRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	var cycleKind *billing.CycleKind
	if req.CycleKind != nil {
		ck := billing.CycleKind(*req.CycleKind)
		cycleKind = &ck
	}

	if err := h.service.ChangePlan(r.Context(), tenantID, req.PlanID, cycleKind); err != nil {
		if errors.Is(err, ErrUnknownPlan) {
			httpserver.RespondError(w, http.StatusBadRequest, string(apierr.KindInvalidPlan), "unknown plan id")
			return
		}
		h.logger.Error("changing plan", "tenant_id", tenantID, "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to change plan")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) handleRevenue(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(r)
	if !ok {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "start and end must be RFC3339 timestamps")
		return
	}

	revenue, err := h.service.Revenue(r.Context(), start, end)
	if err != nil {
		h.logger.Error("aggregating revenue", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to aggregate revenue")
		return
	}

	httpserver.Respond(w, http.StatusOK, revenue)
}

func parseRange(r *http.Request) (time.Time, time.Time, bool) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
