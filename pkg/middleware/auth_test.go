package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

func newRouter(t *testing.T) (*gin.Engine, *jwt.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr, err := jwt.NewManager("secret", "test", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", NewAuthMiddleware(mgr).RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c)+"/"+GetUsername(c))
	})
	return r, mgr
}

func TestRequireAuth(t *testing.T) {
	r, mgr := newRouter(t)
	token, err := mgr.GenerateToken("u-1", "alice")
	require.NoError(t, err)

	cases := []struct {
		name   string
		setup  func(req *http.Request)
		status int
		body   string
	}{
		{name: "bearer header", setup: func(req *http.Request) { req.Header.Set(AuthHeaderKey, BearerPrefix+token) }, status: http.StatusOK, body: "u-1/alice"},
		{name: "query token", setup: func(req *http.Request) {
			q := req.URL.Query()
			q.Set(TokenQueryKey, token)
			req.URL.RawQuery = q.Encode()
		}, status: http.StatusOK, body: "u-1/alice"},
		{name: "missing", setup: func(*http.Request) {}, status: http.StatusUnauthorized},
		{name: "wrong scheme", setup: func(req *http.Request) { req.Header.Set(AuthHeaderKey, "Basic abc") }, status: http.StatusUnauthorized},
		{name: "garbage token", setup: func(req *http.Request) { req.Header.Set(AuthHeaderKey, BearerPrefix+"junk") }, status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tc.status, w.Code)
			if tc.body != "" {
				require.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}
