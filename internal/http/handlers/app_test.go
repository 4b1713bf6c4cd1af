package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tradein/internal/catalogfeed"
	"tradein/internal/config"
	"tradein/internal/http/handlers"
	applog "tradein/internal/log"
	"tradein/internal/repos"
)

const testCatalog = `
models:
  - brand: Apple
    modelId: iphone-13
    name: iPhone 13
    slug: iphone-13
    variants:
      - storage: 128GB
        lockState: unlocked
        pricesByCondition: {flawless: "100", good: "80", fair: "60", broken: "20"}
  - brand: Google
    modelId: pixel-7
    name: Pixel 7
    slug: pixel-7
    variants:
      - storage: 128GB
        lockState: unlocked
        pricesByCondition: {flawless: "70", good: "50", fair: "35", broken: "10"}
  - brand: Samsung
    modelId: galaxy-s22
    name: Galaxy S22
    slug: galaxy-s22
    variants:
      - storage: 128GB
        lockState: unlocked
        pricesByCondition: {flawless: "90", good: "75", fair: "60", broken: "15"}
`

// newTestApp wires the real routes over an in-memory database holding the
// seeded users and a three-model catalog.
func newTestApp(t *testing.T) (*fiber.App, *handlers.Deps) {
	t.Helper()
	cfg := config.Config{DBDSN: ":memory:", QuoteTTL: 14 * 24 * time.Hour, Currency: "USD"}
	db, err := repos.OpenDB(cfg.DBDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repos.SeedUsers(db))

	deps := handlers.NewDeps(db, cfg)
	records, err := catalogfeed.Parse([]byte(testCatalog))
	require.NoError(t, err)
	_, err = deps.Catalog.Ingest(context.Background(), records)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler, BodyLimit: 1 << 20})
	app.Use(requestid.New())
	deps.Mount(app)
	return app, deps
}

// observeLogs routes the process logger into an in-memory observer for the
// duration of the test.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	prev := applog.L()
	applog.Use(zap.New(core))
	t.Cleanup(func() { applog.Use(prev) })
	return logs
}

type client struct {
	t   *testing.T
	app *fiber.App
	sid string
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(c.t, err)
			r = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: c.sid})
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	for _, ck := range resp.Cookies() {
		if ck.Name == "sid" && ck.Value != "" {
			c.sid = ck.Value
		}
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (c *client) login(email string) {
	c.t.Helper()
	status, body := c.do("POST", "/login", map[string]string{"email": email, "password": "Passw0rd!"})
	require.Equal(c.t, http.StatusOK, status, "login %s: %v", email, body)
}

// variantID looks up the first variant of a catalog model over HTTP.
func (c *client) variantID(slug string) string {
	c.t.Helper()
	status, body := c.do("GET", "/catalog/models/"+slug, nil)
	require.Equal(c.t, http.StatusOK, status)
	variants := body["variants"].([]any)
	require.NotEmpty(c.t, variants)
	return variants[0].(map[string]any)["id"].(string)
}

func requireError(t *testing.T, body map[string]any, kind string) {
	t.Helper()
	require.Equal(t, kind, body["error"], "body: %v", body)
	require.NotEmpty(t, body["message"])
	require.NotEmpty(t, body["request_id"])
}
