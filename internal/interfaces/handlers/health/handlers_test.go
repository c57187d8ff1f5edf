package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"obraflow-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDBPinger struct{ err error }

func (f *fakeDBPinger) Ping() error { return f.err }

type fakeCorePinger struct{ err error }

func (f *fakeCorePinger) Ping(ctx context.Context) error { return f.err }

func setupHealth(t *testing.T) (*Handlers, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	h := &Handlers{
		Rdb:            rdb,
		DB:             &fakeDBPinger{},
		Core:           &fakeCorePinger{},
		HealthAdminKey: "secret",
	}
	return h, rdb
}

func TestJSON_AllHealthy(t *testing.T) {
	h, _ := setupHealth(t)
	app := fiber.New()
	app.Get("/health/json", h.JSON)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "obraflow-api", out["service"])
	assert.Equal(t, "ok", out["status"])

	deps, _ := out["dependencies"].(map[string]interface{})
	require.NotNil(t, deps)
	for _, name := range []string{"database", "redis"} {
		dep, _ := deps[name].(map[string]interface{})
		require.NotNil(t, dep, name)
		assert.Equal(t, "connected", dep["status"], name)
	}
	core, _ := deps["core_api"].(map[string]interface{})
	require.NotNil(t, core)
	assert.Equal(t, "reachable", core["status"])
}

func TestJSON_CoreAPIDown(t *testing.T) {
	h, _ := setupHealth(t)
	h.Core = &fakeCorePinger{err: errors.New("connection refused")}
	app := fiber.New()
	app.Get("/health/json", h.JSON)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)

	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "issue", out["status"])
	deps, _ := out["dependencies"].(map[string]interface{})
	core, _ := deps["core_api"].(map[string]interface{})
	assert.Equal(t, "unreachable", core["status"])
}

func TestJSON_NilDBReportsDisconnected(t *testing.T) {
	h, _ := setupHealth(t)
	h.DB = nil
	app := fiber.New()
	app.Get("/health/json", h.JSON)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)

	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	deps, _ := out["dependencies"].(map[string]interface{})
	db, _ := deps["database"].(map[string]interface{})
	assert.Equal(t, "disconnected", db["status"])
}

func TestReset_RequiresAdminKey(t *testing.T) {
	h, _ := setupHealth(t)
	app := fiber.New()
	app.Get("/reset", h.Reset)

	resp, err := app.Test(httptest.NewRequest("GET", "/reset", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/reset?key=wrong", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestReset_ClearsCounters(t *testing.T) {
	h, rdb := setupHealth(t)
	ctx := context.Background()
	require.NoError(t, rdb.Set(ctx, middleware.KeyReqTotal, "42", 0).Err())

	app := fiber.New()
	app.Get("/reset", h.Reset)

	resp, err := app.Test(httptest.NewRequest("GET", "/reset?key=secret", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, err = rdb.Get(ctx, middleware.KeyReqTotal).Result()
	assert.ErrorIs(t, err, redis.Nil)
	// Start time is re-seeded so uptime restarts.
	start, err := rdb.Get(ctx, middleware.KeyStartTime).Result()
	require.NoError(t, err)
	assert.NotEmpty(t, start)
}

func TestErrors_ReturnsLoggedEntries(t *testing.T) {
	h, rdb := setupHealth(t)
	ctx := context.Background()
	entry, _ := json.Marshal(map[string]interface{}{"path": "/api/v1/reconciliation/rows", "status": 502})
	require.NoError(t, rdb.LPush(ctx, middleware.KeyErrorLog, string(entry)).Err())

	app := fiber.New()
	app.Get("/health/errors", h.Errors)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/errors", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "/api/v1/reconciliation/rows", out[0]["path"])
}

func TestHealthMarker_CountsTraffic(t *testing.T) {
	_, rdb := setupHealth(t)
	app := fiber.New()
	app.Use(middleware.HealthMarker(rdb))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	total, err := rdb.Get(context.Background(), middleware.KeyReqTotal).Result()
	require.NoError(t, err)
	assert.Equal(t, "3", total)
}
