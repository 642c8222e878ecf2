package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/listing"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/rbac"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guards    rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guards rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guards: guards, validator: validator.New()}
}

// MountRoutes registers role routes. Reads require roles:read; mutations
// additionally require roles:write or roles:delete. Every guard in a chain
// must pass.
func (h *Handler) MountRoutes(r chi.Router) {
	read := rbac.Require(rbac.Authenticated(), h.guards.Permission(rbac.PermRolesRead))
	write := rbac.Require(rbac.Authenticated(), h.guards.Permission(rbac.PermRolesRead), h.guards.Permission(rbac.PermRolesWrite))
	del := rbac.Require(rbac.Authenticated(), h.guards.Permission(rbac.PermRolesRead), h.guards.Permission(rbac.PermRolesDelete))

	r.Group(func(r chi.Router) {
		r.Use(read)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(write)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(del)
		r.Delete("/{id}", h.delete)
	})
}

type roleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

type createRoleRequest struct {
	Name        string   `json:"name" validate:"required,min=1"`
	Permissions []string `json:"permissions"`
}

type updateRoleRequest struct {
	Name        *string   `json:"name" validate:"omitempty,min=1"`
	Permissions *[]string `json:"permissions"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	params, err := listing.Parse(r.URL.Query(), listing.Options{SortFields: SortFields})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	roles, total, err := h.service.List(r.Context(), params)
	if err != nil {
		h.logger.Error("list roles failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	items := make([]roleResponse, len(roles))
	for i, role := range roles {
		items[i] = toRoleResponse(role)
	}
	httpx.JSON(w, http.StatusOK, listing.NewPage(items, total, params))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, "get role failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	role, err := h.service.Create(r.Context(), req.Name, req.Permissions)
	if err != nil {
		h.respondServiceError(w, "create role failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	role, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), UpdateRoleInput{
		Name:        req.Name,
		Permissions: req.Permissions,
	})
	if err != nil {
		h.respondServiceError(w, "update role failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, "delete role failed", err)
		return
	}
	httpx.Message(w, "Role deleted successfully")
}

func (h *Handler) respondServiceError(w http.ResponseWriter, msg string, err error) {
	if !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, httpx.ErrConflict) && !errors.Is(err, httpx.ErrValidation) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) validateStruct(v any) error {
	err := h.validator.Struct(v)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			fields[strings.ToLower(fieldErr.Field())] = "failed " + fieldErr.Tag() + " validation"
		}
	} else {
		fields["body"] = "invalid"
	}
	return httpx.NewValidationError(fields)
}

func toRoleResponse(role Role) roleResponse {
	perms := role.Permissions
	if perms == nil {
		perms = []string{}
	}
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Permissions: perms,
		CreatedAt:   role.CreatedAt.UnixMilli(),
		UpdatedAt:   role.UpdatedAt.UnixMilli(),
	}
}
