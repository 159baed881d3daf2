//go:build integration

package posts_test

import (
	"context"
	"testing"
	"time"

	"backend-yatube/internal/auth"
	"backend-yatube/internal/db"
	"backend-yatube/internal/posts"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts PostgreSQL and applies the schema.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("yatube"),
		postgres.WithUsername("yatube"),
		postgres.WithPassword("yatube"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

func signup(t *testing.T, svc *auth.Service, username string) auth.Viewer {
	t.Helper()
	user, _, err := svc.Register(context.Background(), auth.RegisterRequest{
		Email:    username + "@example.com",
		Username: username,
		Password: "password123",
	})
	require.NoError(t, err)
	return auth.Viewer{ID: user.ID, Username: user.Username}
}

func TestStorageRules(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	users := auth.NewService("test-secret", pool)
	svc := posts.NewService(pool, nil)

	leo := signup(t, users, "leo")
	anna := signup(t, users, "anna")

	group, err := svc.CreateGroup(ctx, posts.GroupForm{Title: "test", Slug: "test_slug", Description: "about"})
	require.NoError(t, err)

	t.Run("group feed", func(t *testing.T) {
		in, err := svc.CleanPost(ctx, posts.PostForm{Text: "Hello", Group: group.ID})
		require.NoError(t, err)
		_, err = svc.CreatePost(ctx, leo, in)
		require.NoError(t, err)

		_, page, err := svc.GroupFeed(ctx, "test_slug", "")
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Hello", page.Items[0].Text)

		_, _, err = svc.GroupFeed(ctx, "nope", "")
		assert.ErrorIs(t, err, posts.ErrNotFound)
	})

	t.Run("duplicate follow keeps one edge", func(t *testing.T) {
		require.NoError(t, svc.Follow(ctx, anna, "leo"))
		assert.ErrorIs(t, svc.Follow(ctx, anna, "leo"), posts.ErrAlreadyFollowing)
		assert.ErrorIs(t, svc.Follow(ctx, leo, "leo"), posts.ErrSelfFollow)

		var edges int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM follows WHERE user_id = $1 AND author_id = $2`, anna.ID, leo.ID).Scan(&edges))
		assert.Equal(t, 1, edges)

		page, err := svc.FollowFeed(ctx, anna.ID, "")
		require.NoError(t, err)
		assert.Len(t, page.Items, 1)
	})

	t.Run("deleting a group keeps its posts", func(t *testing.T) {
		require.NoError(t, svc.DeleteGroup(ctx, "test_slug"))

		page, err := svc.Index(ctx, "")
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Nil(t, page.Items[0].Group)
	})

	t.Run("deleting a user", func(t *testing.T) {
		annaPost, err := svc.CreatePost(ctx, anna, posts.PostInput{Text: "by anna"})
		require.NoError(t, err)

		index, err := svc.Index(ctx, "")
		require.NoError(t, err)
		var leoPost string
		for _, p := range index.Items {
			if p.Author.Username == "leo" {
				leoPost = p.ID
			}
		}
		require.NotEmpty(t, leoPost)

		_, err = svc.AddComment(ctx, leo, annaPost.ID, posts.CommentForm{Text: "from leo"})
		require.NoError(t, err)
		_, err = svc.AddComment(ctx, anna, leoPost, posts.CommentForm{Text: "from anna"})
		require.NoError(t, err)

		require.NoError(t, users.DeleteUser(ctx, "leo"))

		_, err = svc.PostDetail(ctx, leoPost)
		assert.ErrorIs(t, err, posts.ErrNotFound)

		detail, err := svc.PostDetail(ctx, annaPost.ID)
		require.NoError(t, err)
		require.Len(t, detail.Comments, 1)
		assert.Equal(t, "from leo", detail.Comments[0].Text)
		assert.Empty(t, detail.Comments[0].Author)

		page, err := svc.FollowFeed(ctx, anna.ID, "")
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})
}

func TestGroupFeedPagesNewestFirst(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	users := auth.NewService("test-secret", pool)
	svc := posts.NewService(pool, nil)

	leo := signup(t, users, "leo")
	group, err := svc.CreateGroup(ctx, posts.GroupForm{Title: "test", Slug: "test_slug", Description: "about"})
	require.NoError(t, err)

	// pub_dates are assigned out of insertion order so only ORDER BY can sort them
	const total = 13
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < total; i++ {
		post, err := svc.CreatePost(ctx, leo, posts.PostInput{Text: "post", Group: &group})
		require.NoError(t, err)
		pubDate := base.Add(time.Duration((i*7)%total) * time.Hour)
		_, err = pool.Exec(ctx, `UPDATE posts SET pub_date = $1 WHERE id = $2`, pubDate, post.ID)
		require.NoError(t, err)
	}

	_, first, err := svc.GroupFeed(ctx, "test_slug", "1")
	require.NoError(t, err)
	require.Len(t, first.Items, 10)
	assert.True(t, first.HasNext)
	assert.Equal(t, 2, first.NumPages)
	assert.True(t, first.Items[0].PubDate.Equal(base.Add((total-1)*time.Hour)))
	for i := 1; i < len(first.Items); i++ {
		assert.True(t, first.Items[i].PubDate.Before(first.Items[i-1].PubDate), "page 1 not newest first at %d", i)
	}

	_, second, err := svc.GroupFeed(ctx, "test_slug", "2")
	require.NoError(t, err)
	require.Len(t, second.Items, total-10)
	assert.False(t, second.HasNext)
	last := first.Items[len(first.Items)-1].PubDate
	for i, p := range second.Items {
		assert.True(t, p.PubDate.Before(last), "page 2 item %d newer than page 1", i)
		last = p.PubDate
	}
	assert.True(t, second.Items[len(second.Items)-1].PubDate.Equal(base))
}
