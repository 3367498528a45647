package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/creativedesigns/retail-iam/internal/infra/security"
	"github.com/creativedesigns/retail-iam/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the Authorization header and stores the session
// claims on the request context.
func RequireAuth(tokens *security.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid access token"))
			return
		}

		c.Set(AccountKey, claims.Subject)
		c.Set("claims", claims)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.Username = claims.Subject
		}

		c.Next()
	}
}

// RequirePermission resolves the named permission against the caller's
// current account record. The account is reloaded on every request so role
// changes and deactivation take effect immediately, not at token expiry.
func RequirePermission(registry *usecase.RegistryService, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := AuthenticatedUsername(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		account, err := registry.FindByUsername(c.Request.Context(), username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "account no longer exists"))
			return
		}

		if !account.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "account is inactive"))
			return
		}

		if !account.HasPermission(permission) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

// AuthenticatedUsername retrieves the caller's username from context
// (helper for handlers).
func AuthenticatedUsername(c *gin.Context) (string, bool) {
	val, exists := c.Get(AccountKey)
	if !exists {
		return "", false
	}

	if username, ok := val.(string); ok && username != "" {
		return username, true
	}

	return "", false
}
