package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDHeader carries the trace identifier on requests and responses.
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey locates the trace identifier on the gin context.
	TraceIDKey = "trace_id"
	// AccountKey locates the authenticated account username on the gin
	// context once RequireAuth has run.
	AccountKey = "account_username"

	requestScopeKey = "request_scope"
)

// RequestContext is the per-request metadata collected at the edge: the trace
// identifier, the caller's address and agent, and (after authentication) the
// account username.
type RequestContext struct {
	TraceID   string
	Username  string
	IP        string
	UserAgent string
}

// EnrichContext seeds the request scope. A trace identifier supplied by the
// caller is reused so traces survive hops through upstream proxies; otherwise
// one is minted here. The identifier is always echoed on the response.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Set(requestScopeKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID returns the request's trace identifier, or "" before
// EnrichContext has run.
func GetTraceID(c *gin.Context) string {
	id, _ := c.Value(TraceIDKey).(string)
	return id
}

// GetRequestContext returns the request scope, or nil before EnrichContext
// has run.
func GetRequestContext(c *gin.Context) *RequestContext {
	scope, _ := c.Value(requestScopeKey).(*RequestContext)
	return scope
}
