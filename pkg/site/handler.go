package site

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shakhawat2680/autoseo/internal/auth"
	"github.com/shakhawat2680/autoseo/internal/httpserver"
	"github.com/shakhawat2680/autoseo/pkg/apierr"
	"github.com/shakhawat2680/autoseo/pkg/audit"
)

// Handler provides the HTTP surface for site registration, listing, and
// audit dispatch (spec §6).
type Handler struct {
	logger     *slog.Logger
	service    *Service
	auditStore audit.Store
}

// NewHandler creates a site Handler.
func NewHandler(logger *slog.Logger, service *Service, auditStore audit.Store) *Handler {
	return &Handler{logger: logger, service: service, auditStore: auditStore}
}

// Routes returns a chi.Router with every site route mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/audits", h.handleListAudits)
	r.Post("/{id}/audit", h.handleQueueAudit)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, string(apierr.KindInvalidCredential), "missing authentication")
		return
	}

	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), id.TenantID, req)
	if err != nil {
		if errors.Is(err, ErrDuplicateURL) {
			httpserver.RespondError(w, http.StatusBadRequest, string(apierr.KindDuplicateResource), "a site with this url already exists")
			return
		}
		h.logger.Error("creating site", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to create site")
		return
	}

	httpserver.Respond(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, string(apierr.KindInvalidCredential), "missing authentication")
		return
	}

	sites, err := h.service.List(r.Context(), id.TenantID)
	if err != nil {
		h.logger.Error("listing sites", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to list sites")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"sites": sites, "count": len(sites)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, string(apierr.KindInvalidCredential), "missing authentication")
		return
	}

	siteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid site id")
		return
	}

	site, err := h.service.Get(r.Context(), id.TenantID, siteID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpserver.RespondError(w, http.StatusNotFound, string(apierr.KindNotFound), "site not found")
			return
		}
		h.logger.Error("fetching site", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to fetch site")
		return
	}

	httpserver.Respond(w, http.StatusOK, site)
}

func (h *Handler) handleListAudits(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, string(apierr.KindInvalidCredential), "missing authentication")
		return
	}

	siteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid site id")
		return
	}

	if _, err := h.service.Get(r.Context(), id.TenantID, siteID); err != nil {
		httpserver.RespondError(w, http.StatusNotFound, string(apierr.KindNotFound), "site not found")
		return
	}

	audits, err := h.auditStore.ListBySite(r.Context(), id.TenantID, siteID)
	if err != nil {
		h.logger.Error("listing audits", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to list audits")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"audits": audits, "count": len(audits)})
}

func (h *Handler) handleQueueAudit(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, string(apierr.KindInvalidCredential), "missing authentication")
		return
	}

	siteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid site id")
		return
	}

	if err := h.service.QueueAudit(r.Context(), id.TenantID, siteID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpserver.RespondError(w, http.StatusNotFound, string(apierr.KindNotFound), "site not found")
			return
		}
		h.logger.Error("queueing audit", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to queue audit")
		return
	}

	httpserver.Respond(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
