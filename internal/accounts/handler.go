package accounts

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

// Handler manages account management endpoints.
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

// MountRoutes registers account routes. Reads require accounts:read;
// mutations additionally require accounts:write or accounts:delete.
func (h *Handler) MountRoutes(r chi.Router) {
	read := rbac.Require(rbac.Authenticated(), h.guards.Permission(rbac.PermAccountsRead))
	write := rbac.Require(rbac.Authenticated(), h.guards.Permission(rbac.PermAccountsRead), h.guards.Permission(rbac.PermAccountsWrite))
	del := rbac.Require(rbac.Authenticated(), h.guards.Permission(rbac.PermAccountsRead), h.guards.Permission(rbac.PermAccountsDelete))

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

type accountResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	EmailVerified bool     `json:"emailVerified"`
	Image         *string  `json:"image"`
	CreatedAt     int64    `json:"createdAt"`
	UpdatedAt     int64    `json:"updatedAt"`
	RoleIDs       []string `json:"roleIds"`
}

type createAccountRequest struct {
	Name     string   `json:"name" validate:"required,min=1"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	RoleIDs  []string `json:"roleIds"`
}

type updateAccountRequest struct {
	Name    *string   `json:"name" validate:"omitempty,min=1"`
	Email   *string   `json:"email" validate:"omitempty,email"`
	RoleIDs *[]string `json:"roleIds"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	params, err := listing.Parse(r.URL.Query(), listing.Options{SortFields: SortFields})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	accounts, total, err := h.service.List(r.Context(), params)
	if err != nil {
		h.logger.Error("list accounts failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	items := make([]accountResponse, len(accounts))
	for i, account := range accounts {
		items[i] = toAccountResponse(account)
	}
	httpx.JSON(w, http.StatusOK, listing.NewPage(items, total, params))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, "get account failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	account, err := h.service.Create(r.Context(), CreateAccountInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		RoleIDs:  req.RoleIDs,
	})
	if err != nil {
		h.respondServiceError(w, "create account failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	account, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), UpdateAccountInput{
		Name:    req.Name,
		Email:   req.Email,
		RoleIDs: req.RoleIDs,
	})
	if err != nil {
		h.respondServiceError(w, "update account failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, "delete account failed", err)
		return
	}
	httpx.Message(w, "Account deleted successfully")
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

func toAccountResponse(account Account) accountResponse {
	roleIDs := account.RoleIDs
	if roleIDs == nil {
		roleIDs = []string{}
	}
	return accountResponse{
		ID:            account.ID,
		Name:          account.Name,
		Email:         account.Email,
		EmailVerified: account.EmailVerified,
		Image:         account.Image,
		CreatedAt:     account.CreatedAt.UnixMilli(),
		UpdatedAt:     account.UpdatedAt.UnixMilli(),
		RoleIDs:       roleIDs,
	}
}
