package posts

import (
	"errors"
	"log"

	"backend-yatube/internal/auth"
	"backend-yatube/internal/media"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the feeds, post pages, comments and follow actions.
// cached returns the page cache middleware for a listing route name.
func RegisterRoutes(r fiber.Router, svc *Service, store *media.Store, requireLogin fiber.Handler, cached func(route string) fiber.Handler) {
	r.Get("/", cached("index"), func(c *fiber.Ctx) error {
		page, err := svc.Index(c.Context(), c.Query("page"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"page_obj": page})
	})

	r.Get("/group/:slug", cached("group"), func(c *fiber.Ctx) error {
		group, page, err := svc.GroupFeed(c.Context(), c.Params("slug"), c.Query("page"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"group": group, "page_obj": page})
	})

	r.Get("/profile/:username", cached("profile"), func(c *fiber.Ctx) error {
		viewer := auth.ViewerFrom(c)
		profile, page, err := svc.ProfileFeed(c.Context(), c.Params("username"), viewer.ID, c.Query("page"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{
			"author":      profile.Author,
			"posts_count": profile.PostsCount,
			"following":   profile.Following,
			"page_obj":    page,
		})
	})

	r.Get("/follow", requireLogin, func(c *fiber.Ctx) error {
		page, err := svc.FollowFeed(c.Context(), auth.ViewerFrom(c).ID, c.Query("page"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"page_obj": page})
	})

	r.Post("/profile/:username/follow", requireLogin, func(c *fiber.Ctx) error {
		username := c.Params("username")
		err := svc.Follow(c.Context(), auth.ViewerFrom(c), username)
		if err != nil && !errors.Is(err, ErrSelfFollow) && !errors.Is(err, ErrAlreadyFollowing) {
			return httpError(err)
		}
		return c.Redirect("/profile/"+username, fiber.StatusFound)
	})

	r.Post("/profile/:username/unfollow", requireLogin, func(c *fiber.Ctx) error {
		username := c.Params("username")
		if err := svc.Unfollow(c.Context(), auth.ViewerFrom(c), username); err != nil {
			return httpError(err)
		}
		return c.Redirect("/profile/"+username, fiber.StatusFound)
	})

	r.Get("/posts/:id", func(c *fiber.Ctx) error {
		detail, err := svc.PostDetail(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{
			"post":             detail.Post,
			"comments":         detail.Comments,
			"user_posts_count": detail.PostsCount,
			"form":             CommentForm{},
		})
	})

	addComment := func(c *fiber.Ctx) error {
		id := c.Params("id")
		var form CommentForm
		if err := c.BodyParser(&form); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		_, err := svc.AddComment(c.Context(), auth.ViewerFrom(c), id, form)
		if err != nil && FieldErrors(err) == nil {
			return httpError(err)
		}
		return c.Redirect("/posts/"+id, fiber.StatusFound)
	}
	r.Post("/posts/:id", requireLogin, addComment)
	r.Post("/posts/:id/comment", requireLogin, addComment)

	r.Get("/create", requireLogin, func(c *fiber.Ctx) error {
		groups, err := svc.ListGroups(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"form": PostForm{}, "groups": groups, "is_edit": false})
	})

	r.Post("/create", requireLogin, func(c *fiber.Ctx) error {
		viewer := auth.ViewerFrom(c)
		in, form, err := bindPost(c, svc, store)
		if err != nil {
			return formError(c, err, form, false)
		}
		if _, err := svc.CreatePost(c.Context(), viewer, in); err != nil {
			discard(store, in.Image)
			return httpError(err)
		}
		return c.Redirect("/profile/"+viewer.Username, fiber.StatusFound)
	})

	r.Get("/posts/:id/edit", requireLogin, func(c *fiber.Ctx) error {
		post, err := svc.Post(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		if post.Author.ID != auth.ViewerFrom(c).ID {
			return c.Redirect("/posts/"+post.ID, fiber.StatusFound)
		}
		groups, err := svc.ListGroups(c.Context())
		if err != nil {
			return httpError(err)
		}
		form := PostForm{Text: post.Text}
		if post.Group != nil {
			form.Group = post.Group.ID
		}
		return c.JSON(fiber.Map{"form": form, "groups": groups, "post": post, "is_edit": true})
	})

	r.Post("/posts/:id/edit", requireLogin, func(c *fiber.Ctx) error {
		viewer := auth.ViewerFrom(c)
		post, err := svc.Post(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		if post.Author.ID != viewer.ID {
			return c.Redirect("/posts/"+post.ID, fiber.StatusFound)
		}

		in, form, err := bindPost(c, svc, store)
		if err != nil {
			return formError(c, err, form, true)
		}
		if err := svc.UpdatePost(c.Context(), viewer, post.ID, in); err != nil {
			discard(store, in.Image)
			if errors.Is(err, ErrNotAuthor) {
				return c.Redirect("/posts/"+post.ID, fiber.StatusFound)
			}
			return httpError(err)
		}
		return c.Redirect("/posts/"+post.ID, fiber.StatusFound)
	})
}

// bindPost parses and validates a post form, then stores its image if one
// was uploaded. Nothing is written when validation fails.
func bindPost(c *fiber.Ctx, svc *Service, store *media.Store) (PostInput, PostForm, error) {
	var form PostForm
	if err := c.BodyParser(&form); err != nil {
		return PostInput{}, form, fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	in, err := svc.CleanPost(c.Context(), form)
	if err != nil {
		return PostInput{}, form, err
	}

	// FormFile fails for requests that carry no file.
	fh, err := c.FormFile("image")
	if err != nil {
		return in, form, nil
	}
	image, err := store.Save(fh)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) || errors.Is(err, media.ErrInvalidImage) {
			return PostInput{}, form, &ValidationError{Fields: map[string]string{"image": err.Error()}}
		}
		return PostInput{}, form, err
	}
	in.Image = image
	return in, form, nil
}

func formError(c *fiber.Ctx, err error, form PostForm, isEdit bool) error {
	if fields := FieldErrors(err); fields != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"form": form, "errors": fields, "is_edit": isEdit})
	}
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return ferr
	}
	return httpError(err)
}

func discard(store *media.Store, image string) {
	if image == "" {
		return
	}
	if err := store.Delete(image); err != nil {
		log.Printf("remove orphaned image %s: %v", image, err)
	}
}

func httpError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
