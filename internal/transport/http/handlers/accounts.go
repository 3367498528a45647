package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/creativedesigns/retail-iam/internal/repository"
	"github.com/creativedesigns/retail-iam/internal/usecase"
)

// AccountHandler exposes account administration endpoints.
type AccountHandler struct {
	registry *usecase.RegistryService
	logger   *zap.Logger
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(registry *usecase.RegistryService, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{registry: registry, logger: logger}
}

// RegisterRoutes binds the account CRUD and administration routes.
func (h *AccountHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.POST("", h.Create)
	r.GET("/:username", h.Get)
	r.PUT("/:username", h.Replace)
	r.DELETE("/:username", h.Delete)
	r.PUT("/:username/role", h.SetRole)
	r.POST("/:username/activate", h.Activate)
	r.POST("/:username/deactivate", h.Deactivate)
	r.GET("/:username/permissions", h.ListPermissions)
	r.POST("/:username/permissions", h.GrantPermission)
	r.DELETE("/:username/permissions", h.RevokePermission)
}

var notFoundCase = ErrorCase{
	Err:     repository.ErrNotFound,
	Status:  http.StatusNotFound,
	Message: "account not found",
}

// List returns every account in registration order.
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.registry.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list accounts"))
		return
	}

	out := make([]AccountSummary, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, NewAccountSummary(account))
	}
	c.JSON(http.StatusOK, out)
}

// Get returns a single account by username.
func (h *AccountHandler) Get(c *gin.Context) {
	account, err := h.registry.FindByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{notFoundCase},
			http.StatusInternalServerError, "failed to load account")
		return
	}
	c.JSON(http.StatusOK, NewAccountSummary(account))
}

// Create registers a new account.
func (h *AccountHandler) Create(c *gin.Context) {
	var req RegisterAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username and password are required"))
		return
	}

	account, err := h.registry.Register(c.Request.Context(), usecase.RegisterInput{
		FullName: req.FullName,
		Username: req.Username,
		Secret:   req.Password,
		Role:     req.Role,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUsernameTaken, Status: http.StatusConflict, Message: "username already registered"},
		}, http.StatusInternalServerError, "failed to register account")
		return
	}

	c.JSON(http.StatusCreated, NewAccountSummary(account))
}

// Replace overwrites an existing account in place.
func (h *AccountHandler) Replace(c *gin.Context) {
	var req ReplaceAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username is required"))
		return
	}

	account, err := h.registry.Replace(c.Request.Context(), c.Param("username"), usecase.RegisterInput{
		FullName: req.FullName,
		Username: req.Username,
		Secret:   req.Password,
		Role:     req.Role,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			notFoundCase,
			{Err: usecase.ErrUsernameTaken, Status: http.StatusConflict, Message: "username already registered"},
		}, http.StatusInternalServerError, "failed to replace account")
		return
	}

	c.JSON(http.StatusOK, NewAccountSummary(account))
}

// Delete removes an account.
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.registry.Remove(c.Request.Context(), c.Param("username")); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{notFoundCase},
			http.StatusInternalServerError, "failed to delete account")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "account deleted"})
}

// SetRole assigns a new role to an account.
func (h *AccountHandler) SetRole(c *gin.Context) {
	var req RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "role is required"))
		return
	}

	previous, updated, err := h.registry.SetRole(c.Request.Context(), c.Param("username"), req.Role)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{notFoundCase},
			http.StatusInternalServerError, "failed to update role")
		return
	}

	c.JSON(http.StatusOK, RoleUpdateResponse{
		Username:     c.Param("username"),
		PreviousRole: string(previous),
		NewRole:      string(updated),
	})
}

// Activate enables an account and clears any lockout.
func (h *AccountHandler) Activate(c *gin.Context) {
	if err := h.registry.SetActive(c.Request.Context(), c.Param("username"), true); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{notFoundCase},
			http.StatusInternalServerError, "failed to activate account")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "account activated"})
}

// Deactivate disables an account.
func (h *AccountHandler) Deactivate(c *gin.Context) {
	if err := h.registry.SetActive(c.Request.Context(), c.Param("username"), false); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{notFoundCase},
			http.StatusInternalServerError, "failed to deactivate account")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "account deactivated"})
}

// ListPermissions returns the custom grants for an account.
func (h *AccountHandler) ListPermissions(c *gin.Context) {
	account, err := h.registry.FindByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{notFoundCase},
			http.StatusInternalServerError, "failed to load account")
		return
	}

	c.JSON(http.StatusOK, PermissionListResponse{
		Username:    account.Username,
		Role:        string(account.Role),
		Permissions: account.PermissionList(),
	})
}

// GrantPermission adds a custom permission to an account.
func (h *AccountHandler) GrantPermission(c *gin.Context) {
	var req PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "permission is required"))
		return
	}

	changed, err := h.registry.GrantPermission(c.Request.Context(), c.Param("username"), req.Permission)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{notFoundCase},
			http.StatusInternalServerError, "failed to grant permission")
		return
	}

	if !changed {
		c.JSON(http.StatusOK, MessageResponse{Message: "permission already granted"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "permission granted"})
}

// RevokePermission removes a custom permission from an account.
func (h *AccountHandler) RevokePermission(c *gin.Context) {
	var req PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "permission is required"))
		return
	}

	changed, err := h.registry.RevokePermission(c.Request.Context(), c.Param("username"), req.Permission)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{notFoundCase},
			http.StatusInternalServerError, "failed to revoke permission")
		return
	}

	if !changed {
		c.JSON(http.StatusOK, MessageResponse{Message: "permission was not granted"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "permission revoked"})
}
