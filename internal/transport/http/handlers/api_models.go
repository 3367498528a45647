package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary describes the API view of an account. Credential material is
// never included.
type AccountSummary struct {
	ID             int        `json:"id"`
	FullName       string     `json:"full_name"`
	Username       string     `json:"username"`
	Role           string     `json:"role"`
	IsActive       bool       `json:"is_active"`
	Locked         bool       `json:"locked"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	FailedAttempts int        `json:"failed_attempts"`
	Permissions    []string   `json:"custom_permissions,omitempty"`
}

// NewAccountSummary converts a domain account into its API representation.
func NewAccountSummary(account *domain.Account) AccountSummary {
	return AccountSummary{
		ID:             account.ID,
		FullName:       account.FullName,
		Username:       account.Username,
		Role:           string(account.Role),
		IsActive:       account.IsActive,
		Locked:         account.Locked(),
		CreatedAt:      account.CreatedAt,
		LastLoginAt:    account.LastLoginAt,
		FailedAttempts: account.FailedAttempts,
		Permissions:    account.PermissionList(),
	}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	Account     AccountSummary `json:"account"`
}

// RegisterAccountRequest defines the account creation payload.
type RegisterAccountRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// ReplaceAccountRequest defines the full-overwrite payload. An empty password
// keeps the stored credential.
type ReplaceAccountRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RoleUpdateRequest assigns a new role to an account.
type RoleUpdateRequest struct {
	Role string `json:"role" binding:"required"`
}

// RoleUpdateResponse reports the prior and new role.
type RoleUpdateResponse struct {
	Username     string `json:"username"`
	PreviousRole string `json:"previous_role"`
	NewRole      string `json:"new_role"`
}

// PermissionRequest grants or revokes a custom permission.
type PermissionRequest struct {
	Permission string `json:"permission" binding:"required"`
}

// PermissionListResponse lists the resolved permissions for an account.
type PermissionListResponse struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"custom_permissions"`
}

// PasswordChangeRequest rotates the caller's own credential.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each dependency probe.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
