package cache

import (
	"time"

	"github.com/gofiber/fiber/v2"
	fibercache "github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/utils"
)

// Header reports "hit" or "miss" on responses of cached routes.
const Header = "X-Cache"

// New caches GET responses by their full URL (path and query) for ttl.
// Writes never invalidate an entry; it lives until it expires or the
// storage is reset.
func New(storage fiber.Storage, ttl time.Duration) fiber.Handler {
	return fibercache.New(fibercache.Config{
		Expiration:  ttl,
		Storage:     storage,
		CacheHeader: Header,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.CopyString(c.OriginalURL())
		},
	})
}

// ForRoutes returns a middleware factory keyed by route name. Routes for
// which cached reports true get the page cache; the rest, and every route
// when storage is nil, pass straight through.
func ForRoutes(storage fiber.Storage, ttl time.Duration, cached func(route string) bool) func(route string) fiber.Handler {
	return func(route string) fiber.Handler {
		if storage == nil || ttl <= 0 || cached == nil || !cached(route) {
			return passThrough
		}
		return New(storage, ttl)
	}
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}
