package tenant

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shakhawat2680/autoseo/internal/httpserver"
	"github.com/shakhawat2680/autoseo/pkg/apierr"
)

// Handler provides the HTTP surface for tenant registration (spec §6
// POST /tenants).
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a tenant Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with the tenant registration route mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleRegister)
	return r
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			httpserver.RespondError(w, http.StatusBadRequest, string(apierr.KindDuplicateResource), "email already registered")
			return
		}
		h.logger.Error("registering tenant", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierr.KindInternal), "failed to register tenant")
		return
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}
