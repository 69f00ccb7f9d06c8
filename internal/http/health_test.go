package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/taxsync/internal/database"
	"github.com/mrlokans/taxsync/internal/fixtures"
)

func serveHealth(t *testing.T, controller *HealthController) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/health", controller.Status)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func TestHealthController_Status(t *testing.T) {
	t.Run("returns healthy when database is connected", func(t *testing.T) {
		db := fixtures.NewDatabase(t)

		w, response := serveHealth(t, NewHealthController(db, nil, "1.0.0"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "1.0.0", response.Version)
		assert.Equal(t, "ok", response.Checks["database"])
		assert.NotEmpty(t, response.Time)
	})

	t.Run("reports not configured when database is nil", func(t *testing.T) {
		w, response := serveHealth(t, NewHealthController(nil, nil, "1.0.0"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "not configured", response.Checks["database"])
	})

	t.Run("returns unhealthy when database connection is closed", func(t *testing.T) {
		db, err := database.NewDatabase(":memory:")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		w, response := serveHealth(t, NewHealthController(db, nil, "1.0.0"))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Contains(t, response.Checks["database"], "error")
	})

	t.Run("reports sync engine activity", func(t *testing.T) {
		env := newAPIEnv(t)

		_, response := serveHealth(t, NewHealthController(env.db, env.scheduler, "1.0.0"))
		assert.Equal(t, "idle", response.Checks["sync"])

		require.NoError(t, env.products.Create(fixtures.Products(2)...))
		_, entered := env.gateFirstCall(t)
		startProductJob(t, env)
		waitFor(t, entered)

		w, response := serveHealth(t, NewHealthController(env.db, env.scheduler, "1.0.0"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "1 active job(s)", response.Checks["sync"])
	})

	t.Run("includes timestamp in response", func(t *testing.T) {
		_, response := serveHealth(t, NewHealthController(fixtures.NewDatabase(t), nil, "2.5.3"))

		assert.Equal(t, "2.5.3", response.Version)
		// Should be in RFC3339 format
		assert.Contains(t, response.Time, "T")
	})
}

func TestNewHealthController(t *testing.T) {
	t.Run("accepts nil database", func(t *testing.T) {
		controller := NewHealthController(nil, nil, "1.0.0")

		assert.NotNil(t, controller)
		assert.Nil(t, controller.db)
	})

	t.Run("accepts empty version", func(t *testing.T) {
		controller := NewHealthController(fixtures.NewDatabase(t), nil, "")

		assert.Equal(t, "", controller.version)
	})
}
