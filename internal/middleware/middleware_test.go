package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ipcr-api/internal/models"
	"github.com/noah-isme/ipcr-api/internal/service"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
)

type validatorStub map[string]*models.IdentityClaims

func (v validatorStub) ValidateToken(token string) (*models.IdentityClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Wrap(errors.New("bad token"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
}

func newProtectedRouter(roles ...models.OwnerRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	tokens := validatorStub{
		"prof":  {OwnerID: "p-1", Role: models.RoleProfessor},
		"admin": {OwnerID: "a-1", Role: models.RoleAdmin},
	}
	handlers := []gin.HandlerFunc{JWT(tokens)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		claims, _ := Claims(c)
		c.String(http.StatusOK, claims.OwnerID)
	})
	r.GET("/x", handlers...)
	return r
}

func doGet(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	r := newProtectedRouter()

	assert.Equal(t, http.StatusUnauthorized, doGet(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Bearer nope").Code)

	w := doGet(r, "Bearer prof")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-1", w.Body.String())
}

func TestRequireRoles(t *testing.T) {
	r := newProtectedRouter(models.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, doGet(r, "Bearer prof").Code)
	assert.Equal(t, http.StatusOK, doGet(r, "Bearer admin").Code)
}

func TestMetricsMiddlewareObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/x", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusNoContent)
	})

	doGet(r, "")
	count, err := testutil.GatherAndCount(metrics.Registry(), "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
