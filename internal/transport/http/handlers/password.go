package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/creativedesigns/retail-iam/internal/infra/security"
	"github.com/creativedesigns/retail-iam/internal/repository"
	"github.com/creativedesigns/retail-iam/internal/transport/http/middleware"
	"github.com/creativedesigns/retail-iam/internal/usecase"
)

// PasswordHandler exposes the self-service password change endpoint.
type PasswordHandler struct {
	registry  *usecase.RegistryService
	validator *security.PasswordValidator
	logger    *zap.Logger
}

// NewPasswordHandler constructs PasswordHandler. The validator carries any
// policy layered on top of the structural password rules (e.g. a strength
// score) and may be nil.
func NewPasswordHandler(registry *usecase.RegistryService, validator *security.PasswordValidator, logger *zap.Logger) *PasswordHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordHandler{registry: registry, validator: validator, logger: logger}
}

// ChangePassword rotates the caller's own credential. The current password
// must verify and the new password must satisfy the password rules; on any
// failure the stored credential is unchanged.
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	username, ok := middleware.AuthenticatedUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "current, new, and confirmation passwords are required"))
		return
	}

	if h.validator != nil {
		if err := h.validator.Validate(req.NewPassword); err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
			return
		}
	}

	err := h.registry.ChangeSecret(c.Request.Context(), username, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}
