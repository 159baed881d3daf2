package auth

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// CookieName carries the access token for clients that follow redirects
// instead of sending an Authorization header.
const CookieName = "access_token"

const (
	localUserID   = "user_id"
	localUsername = "username"
)

// Identify resolves the viewer from a bearer token or the session cookie and
// stores it in locals. Requests without a valid token continue anonymously.
func Identify(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Cookies(CookieName)
		}
		if token == "" {
			return c.Next()
		}

		parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
			return secretBytes, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return c.Next()
		}

		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid || claims.UserID == "" || claims.TokenType != AccessToken {
			return c.Next()
		}

		c.Locals(localUserID, claims.UserID)
		c.Locals(localUsername, claims.Username)
		return c.Next()
	}
}

// RequireLogin redirects anonymous viewers to loginURL, remembering where
// they were headed in the next parameter.
func RequireLogin(loginURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ViewerFrom(c).Authenticated() {
			return c.Next()
		}
		return c.Redirect(loginURL+"?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
	}
}

// ViewerFrom returns the viewer stored by Identify.
func ViewerFrom(c *fiber.Ctx) Viewer {
	id, _ := c.Locals(localUserID).(string)
	username, _ := c.Locals(localUsername).(string)
	return Viewer{ID: id, Username: username}
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
