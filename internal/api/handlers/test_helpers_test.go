package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/machinehub/machinehub/internal/api/middleware"
	"github.com/machinehub/machinehub/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testUser creates a SessionUser for testing.
func testUser() *auth.SessionUser {
	return &auth.SessionUser{
		ID:              uuid.New(),
		Username:        "admin",
		Role:            "admin",
		AuthenticatedAt: time.Now().UTC(),
	}
}

// SetupTestRouter builds a router that mimics the auth middleware: a nil user
// means every request is rejected with 401, otherwise the user is injected
// into the request context.
func SetupTestRouter(user *auth.SessionUser) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(string(middleware.UserContextKey), user)
		c.Next()
	})
	return r
}

// AuthenticatedRequest builds a bodyless request for the test router.
func AuthenticatedRequest(method, path string) *http.Request {
	req, _ := http.NewRequest(method, path, nil)
	return req
}

// JSONRequest builds a request carrying a JSON body.
func JSONRequest(method, path, body string) *http.Request {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest runs a request through the router and captures the response.
func DoRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
