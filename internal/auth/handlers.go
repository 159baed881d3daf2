package auth

import (
	"errors"
	"strings"
	"time"

	"backend-yatube/internal/db"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, requireLogin fiber.Handler) {
	r.Post("/signup", func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		user, tokens, err := svc.Register(c.Context(), req)
		if err != nil {
			var verrs validator.ValidationErrors
			switch {
			case errors.As(err, &verrs):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": fieldErrors(verrs)})
			case db.IsUniqueViolation(err):
				return fiber.NewError(fiber.StatusBadRequest, "username or email already taken")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		setSessionCookie(c, tokens.AccessToken)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user, "tokens": tokens})
	})

	r.Get("/login", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"fields": []string{"username", "password"},
			"next":   c.Query("next"),
		})
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Username == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "username and password required")
		}
		user, tokens, err := svc.Login(c.Context(), req)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				return fiber.NewError(fiber.StatusUnauthorized, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		setSessionCookie(c, tokens.AccessToken)
		if next := c.Query("next"); isLocalPath(next) {
			return c.Redirect(next, fiber.StatusSeeOther)
		}
		return c.JSON(fiber.Map{"user": user, "tokens": tokens})
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "refresh_token required")
		}

		claims, err := svc.ValidateRefreshToken(c.Context(), req.RefreshToken)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		resp, err := svc.GenerateTokens(c.Context(), claims.UserID, claims.Username)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		setSessionCookie(c, resp.AccessToken)
		return c.JSON(resp)
	})

	r.Post("/logout", requireLogin, func(c *fiber.Ctx) error {
		if err := svc.Logout(c.Context(), ViewerFrom(c).ID); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.ClearCookie(CookieName)
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/jwt/verify", func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		claims, err := svc.ValidateAccessToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return c.JSON(fiber.Map{"user_id": claims.UserID, "username": claims.Username})
	})
}

func setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(accessTokenTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// isLocalPath rejects absolute and protocol-relative URLs so next cannot be
// used as an open redirect.
func isLocalPath(next string) bool {
	return strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//")
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = "failed " + fe.Tag() + " check"
	}
	return out
}
