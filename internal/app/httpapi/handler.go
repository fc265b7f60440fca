// Package httpapi exposes the panel over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/boostgrid/panel-service/internal/errors"

	"github.com/boostgrid/panel-service/internal/app/domain/profile"
	"github.com/boostgrid/panel-service/internal/app/metrics"
	"github.com/boostgrid/panel-service/internal/app/services/admin"
	"github.com/boostgrid/panel-service/internal/app/services/catalog"
	"github.com/boostgrid/panel-service/internal/app/services/orders"
	"github.com/boostgrid/panel-service/internal/app/services/profiles"
	"github.com/boostgrid/panel-service/internal/app/services/provider"
	"github.com/boostgrid/panel-service/internal/app/storage"
	"github.com/boostgrid/panel-service/internal/middleware"
	"github.com/boostgrid/panel-service/pkg/logger"
)

// Config wires the handler to its services.
type Config struct {
	Orders   *orders.Service
	Catalog  *catalog.Service
	Profiles *profiles.Service
	Provider *provider.Client
	Admin    *admin.Service

	// ProfileStore backs the admin-role check.
	ProfileStore storage.ProfileStore

	Auth *middleware.AuthMiddleware
	Log  *logger.Logger
}

type handler struct {
	cfg Config
	log *logger.Logger
}

// NewHandler builds the HTTP routing tree.
func NewHandler(cfg Config) http.Handler {
	log := cfg.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{cfg: cfg, log: log}

	r := chi.NewRouter()

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/get-services", h.getServices)
	r.Post("/get-services", h.getServices)
	r.Post("/smm-provider", h.smmProvider)

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Handler)
		r.Post("/create-order", h.createOrder)
		r.Get("/get-user-profile", h.getUserProfile)
		r.Post("/get-user-profile", h.getUserProfile)
		r.Post("/accept-invitation", h.acceptInvitation)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/services", h.adminListServices)
			r.Post("/services", h.adminCreateService)
			r.Put("/services/{id}", h.adminUpdateService)
			r.Get("/users", h.adminListUsers)
			r.Put("/users/{userID}/status", h.adminSetUserStatus)
			r.Get("/invitations", h.adminListInvitations)
			r.Post("/invitations", h.adminCreateInvitation)
			r.Get("/audit", h.adminListAudit)
		})
	})

	return r
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- public endpoints -------------------------------------------------------

func (h *handler) getServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.cfg.Catalog.List(r.Context(), catalog.ListFilter{
		Platform: r.URL.Query().Get("platform"),
		Category: r.URL.Query().Get("category"),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"services": services})
}

func (h *handler) smmProvider(w http.ResponseWriter, r *http.Request) {
	var req provider.ActionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.respondError(w, r, apperrors.BadRequest("Invalid request body"))
		return
	}

	body, err := h.cfg.Provider.Forward(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// --- authenticated endpoints ------------------------------------------------

type createOrderRequest struct {
	ServiceID string `json:"service_id"`
	TargetURL string `json:"target_url"`
	Quantity  int    `json:"quantity"`
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.respondError(w, r, apperrors.Unauthorized(""))
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		metrics.RecordOrderFailed("bad_request")
		h.respondError(w, r, apperrors.BadRequest("Invalid request body"))
		return
	}

	result, err := h.cfg.Orders.PlaceOrder(r.Context(), userID, orders.PlaceOrderRequest{
		ServiceID: req.ServiceID,
		TargetURL: req.TargetURL,
		Quantity:  req.Quantity,
	})
	if err != nil {
		metrics.RecordOrderFailed(failureReason(err))
		h.respondError(w, r, err)
		return
	}

	metrics.RecordOrderCreated()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"order":   result.Order,
		"message": "Order created successfully",
	})
}

func (h *handler) getUserProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.respondError(w, r, apperrors.Unauthorized(""))
		return
	}

	view, err := h.cfg.Profiles.Get(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile": struct {
			profile.Profile
			profile.Stats
		}{view.Profile, view.Stats},
	})
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

func (h *handler) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.respondError(w, r, apperrors.Unauthorized(""))
		return
	}

	var req acceptInvitationRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.respondError(w, r, apperrors.BadRequest("Invalid request body"))
		return
	}

	granted, err := h.cfg.Admin.AcceptInvitation(r.Context(), h.actor(r, userID), req.Token)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"profile": granted,
	})
}

// --- admin endpoints --------------------------------------------------------

// requireAdmin allows only callers whose profile carries the admin flag.
func (h *handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			h.respondError(w, r, apperrors.Unauthorized(""))
			return
		}

		p, err := h.cfg.ProfileStore.GetProfileByUserID(r.Context(), userID)
		if err != nil || !p.IsAdmin {
			h.respondError(w, r, apperrors.Unauthorized("Admin access required"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *handler) adminListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.cfg.Admin.ListServices(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"services": services})
}

func (h *handler) adminCreateService(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var in admin.ServiceInput
	if err := decodeJSON(r.Body, &in); err != nil {
		h.respondError(w, r, apperrors.BadRequest("Invalid request body"))
		return
	}

	created, err := h.cfg.Admin.CreateService(r.Context(), h.actor(r, userID), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) adminUpdateService(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var in admin.ServiceInput
	if err := decodeJSON(r.Body, &in); err != nil {
		h.respondError(w, r, apperrors.BadRequest("Invalid request body"))
		return
	}

	updated, err := h.cfg.Admin.UpdateService(r.Context(), h.actor(r, userID), chi.URLParam(r, "id"), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.cfg.Admin.ListUsers(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

type setUserStatusRequest struct {
	Status string `json:"status"`
}

func (h *handler) adminSetUserStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req setUserStatusRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.respondError(w, r, apperrors.BadRequest("Invalid request body"))
		return
	}

	updated, err := h.cfg.Admin.SetUserStatus(r.Context(), h.actor(r, userID),
		chi.URLParam(r, "userID"), profile.Status(req.Status))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) adminListInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.cfg.Admin.ListInvitations(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invitations": invitations})
}

type createInvitationRequest struct {
	Email string `json:"email"`
}

func (h *handler) adminCreateInvitation(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req createInvitationRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.respondError(w, r, apperrors.BadRequest("Invalid request body"))
		return
	}

	inv, err := h.cfg.Admin.CreateInvitation(r.Context(), h.actor(r, userID), req.Email)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *handler) adminListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.respondError(w, r, apperrors.BadRequest("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.cfg.Admin.ListAuditLog(r.Context(), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// --- helpers ----------------------------------------------------------------

func (h *handler) actor(r *http.Request, userID string) admin.Actor {
	return admin.Actor{
		UserID:    userID,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := apperrors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = apperrors.Internal("", err)
	}

	if serviceErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithError(err).WithFields(map[string]interface{}{
			"path":   r.URL.Path,
			"method": r.Method,
		}).Error("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(serviceErr.HTTPStatus)

	body := map[string]interface{}{"error": serviceErr.Message, "code": string(serviceErr.Code)}
	for k, v := range serviceErr.Details {
		body[k] = v
	}
	_ = json.NewEncoder(w).Encode(body)
}

func failureReason(err error) string {
	serviceErr := apperrors.GetServiceError(err)
	if serviceErr == nil {
		return "internal"
	}
	switch serviceErr.Code {
	case apperrors.CodeInsufficientBalance:
		return "insufficient_balance"
	case apperrors.CodeBadRequest:
		return "bad_request"
	case apperrors.CodeNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Trailing content after the JSON document is rejected.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
