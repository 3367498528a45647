package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
	appLogger "github.com/creativedesigns/retail-iam/internal/infra/logger"
	"github.com/creativedesigns/retail-iam/internal/infra/security"
	"github.com/creativedesigns/retail-iam/internal/usecase"
)

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	registry *usecase.RegistryService
	tokens   *security.TokenManager
	logger   *zap.Logger
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(registry *usecase.RegistryService, tokens *security.TokenManager, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{registry: registry, tokens: tokens, logger: logger}
}

// RegisterRoutes binds authentication routes, applying optional middleware
// ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	chain = append(chain, h.Login)
	r.POST("/login", chain...)
}

// Login validates the submitted credentials and issues a session token. The
// response distinguishes locked (423) and deactivated (403) accounts from a
// plain credential mismatch (401) without ever revealing which credential
// failed.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username and password are required"))
		return
	}

	account, outcome, err := h.registry.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Error("login failed",
			zap.String("username", appLogger.MaskString(req.Username)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication failed"))
		return
	}

	switch outcome {
	case domain.AuthSuccess:
	case domain.AuthLocked:
		c.JSON(http.StatusLocked, NewErrorResponse(c, "account is locked after repeated failed attempts"))
		return
	case domain.AuthInactive:
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "account is inactive"))
		return
	default:
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credentials"))
		return
	}

	token, expiresAt, err := h.tokens.Issue(account)
	if err != nil {
		h.logger.Error("token issuance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication failed"))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
		Account:     NewAccountSummary(account),
	})
}
