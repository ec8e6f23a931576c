package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultClientHeader carries the caller's client ID, set by the gateway
// after it has authenticated the request
const DefaultClientHeader = "X-Client-ID"

const clientIDKey = "client_id"

var errUnauthenticated = errors.New("missing or invalid caller identity")

// Authenticator resolves the caller of a request to a client ID
type Authenticator interface {
	Authenticate(r *http.Request) (int64, error)
}

// HeaderAuthenticator trusts a client ID header set upstream
type HeaderAuthenticator struct {
	Header string
}

// NewHeaderAuthenticator creates an authenticator reading header, or
// DefaultClientHeader when header is empty
func NewHeaderAuthenticator(header string) *HeaderAuthenticator {
	if header == "" {
		header = DefaultClientHeader
	}
	return &HeaderAuthenticator{Header: header}
}

// Authenticate returns the positive client ID in the configured header
func (a *HeaderAuthenticator) Authenticate(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(a.Header))
	if raw == "" {
		return 0, errUnauthenticated
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errUnauthenticated
	}
	return id, nil
}

func authMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := auth.Authenticate(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": err.Error(),
			})
			return
		}

		c.Set(clientIDKey, clientID)
		c.Next()
	}
}

func callerID(c *gin.Context) int64 {
	return c.GetInt64(clientIDKey)
}
