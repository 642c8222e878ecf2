package identity

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

// Handler exposes sign-up, sign-in, and sign-out endpoints.
type Handler struct {
	logger    *slog.Logger
	provider  *Provider
	tx        db.TxRunner
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, provider *Provider, tx db.TxRunner) *Handler {
	return &Handler{
		logger:    logger,
		provider:  provider,
		tx:        tx,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sign-up", h.handleSignUp)
	r.Post("/sign-in", h.handleSignIn)
	r.Post("/sign-out", h.handleSignOut)
}

// BearerToken extracts the session token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

type signUpRequest struct {
	Name     string `json:"name" validate:"required,min=1"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type callerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type sessionResponse struct {
	Token string         `json:"token"`
	User  callerResponse `json:"user"`
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validateStruct(req); fields != nil {
		httpx.RespondError(w, httpx.NewValidationError(fields))
		return
	}

	var ident Identity
	err := h.tx.InTx(r.Context(), func(q db.Querier) error {
		var err error
		ident, err = h.provider.CreateIdentity(r.Context(), q, req.Name, req.Email, req.Password)
		return err
	})
	if err != nil {
		h.logger.Error("sign up failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	_, token, err := h.provider.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("post sign-up authenticate failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, sessionResponse{
		Token: token,
		User:  callerResponse{ID: ident.ID, Name: ident.Name, Email: ident.Email},
	})
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validateStruct(req); fields != nil {
		httpx.RespondError(w, httpx.NewValidationError(fields))
		return
	}

	caller, token, err := h.provider.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpx.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("sign in failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, sessionResponse{
		Token: token,
		User:  callerResponse{ID: caller.ID, Name: caller.Name, Email: caller.Email},
	})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.Revoke(r.Context(), BearerToken(r)); err != nil {
		h.logger.Error("sign out failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, "Signed out successfully")
}

func (h *Handler) validateStruct(v any) map[string]string {
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
	return fields
}
