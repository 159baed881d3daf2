package cache

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func countingApp(mw func(route string) fiber.Handler, calls *int) *fiber.App {
	app := fiber.New()
	app.Get("/", mw("index"), func(c *fiber.Ctx) error {
		*calls++
		return c.SendString(fmt.Sprintf("render %d page %s", *calls, c.Query("page", "1")))
	})
	app.Get("/group/:slug", mw("group"), func(c *fiber.Ctx) error {
		*calls++
		return c.SendString(fmt.Sprintf("group render %d", *calls))
	})
	return app
}

func get(t *testing.T, app *fiber.App, target string) (string, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("request %s: %v", target, err)
	}
	body, _ := io.ReadAll(resp.Body)
	return string(body), resp.Header.Get(Header)
}

func TestCachedRouteServesStalePage(t *testing.T) {
	storage, mr, _ := newTestStorage(t)
	calls := 0
	app := countingApp(ForRoutes(storage, 20*time.Second, func(r string) bool { return r == "index" }), &calls)

	first, status := get(t, app, "/")
	if status != "miss" || first != "render 1 page 1" {
		t.Fatalf("unexpected first response %q (%s)", first, status)
	}

	second, status := get(t, app, "/")
	if status != "hit" || second != first || calls != 1 {
		t.Fatalf("expected cached page, got %q (%s), calls=%d", second, status, calls)
	}

	// the query string is part of the key
	other, status := get(t, app, "/?page=2")
	if status != "miss" || other != "render 2 page 2" {
		t.Fatalf("unexpected page 2 response %q (%s)", other, status)
	}

	if err := storage.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	fresh, status := get(t, app, "/")
	if status != "miss" || fresh != "render 3 page 1" {
		t.Fatalf("expected fresh render after reset, got %q (%s)", fresh, status)
	}

	mr.FastForward(21 * time.Second)
	if _, status := get(t, app, "/"); status != "miss" {
		t.Fatalf("expected miss after expiry, got %s", status)
	}
}

func TestUncachedRoutePassesThrough(t *testing.T) {
	storage, _, _ := newTestStorage(t)
	calls := 0
	app := countingApp(ForRoutes(storage, 20*time.Second, func(r string) bool { return r == "index" }), &calls)

	first, status := get(t, app, "/group/test_slug")
	if status != "" {
		t.Fatalf("uncached route should not carry %s header", Header)
	}
	second, _ := get(t, app, "/group/test_slug")
	if first == second || calls != 2 {
		t.Fatalf("expected every request rendered, calls=%d", calls)
	}
}

func TestForRoutesWithoutStorage(t *testing.T) {
	calls := 0
	app := countingApp(ForRoutes(nil, 20*time.Second, func(string) bool { return true }), &calls)

	get(t, app, "/")
	get(t, app, "/")
	if calls != 2 {
		t.Fatalf("expected cache disabled without storage, calls=%d", calls)
	}
}
