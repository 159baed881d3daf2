package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"backend-yatube/internal/auth"
	"backend-yatube/internal/db"
	"backend-yatube/internal/paginate"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotAuthor        = errors.New("only the author can edit a post")
	ErrSelfFollow       = errors.New("cannot follow yourself")
	ErrAlreadyFollowing = errors.New("already following this author")
)

const (
	postColumns = `p.id, p.text, p.pub_date, p.image, u.id, u.username,
		COALESCE(g.id::text, ''), COALESCE(g.slug, ''), COALESCE(g.title, '')`
	postSource = `FROM posts p
		JOIN users u ON u.id = p.author_id
		LEFT JOIN groups g ON g.id = p.group_id`
)

// Notifier is told about every new post, keyed by author username.
type Notifier interface {
	Broadcast(author string, payload []byte)
}

type Service struct {
	db       db.Querier
	notifier Notifier
}

func NewService(db db.Querier, notifier Notifier) *Service {
	return &Service{db: db, notifier: notifier}
}

func (s *Service) Index(ctx context.Context, page string) (paginate.Page[Post], error) {
	return s.listPosts(ctx, "", page)
}

func (s *Service) GroupFeed(ctx context.Context, slug, page string) (Group, paginate.Page[Post], error) {
	group, err := s.GroupBySlug(ctx, slug)
	if err != nil {
		return Group{}, paginate.Page[Post]{}, err
	}
	posts, err := s.listPosts(ctx, "WHERE p.group_id = $1", page, group.ID)
	if err != nil {
		return Group{}, paginate.Page[Post]{}, err
	}
	return group, posts, nil
}

// ProfileFeed loads an author's posts. Following reports whether viewerID
// follows the author and is always false for anonymous viewers.
func (s *Service) ProfileFeed(ctx context.Context, username, viewerID, page string) (Profile, paginate.Page[Post], error) {
	author, err := s.authorByUsername(ctx, username)
	if err != nil {
		return Profile{}, paginate.Page[Post]{}, err
	}
	posts, err := s.listPosts(ctx, "WHERE p.author_id = $1", page, author.ID)
	if err != nil {
		return Profile{}, paginate.Page[Post]{}, err
	}

	profile := Profile{Author: author, PostsCount: posts.Count}
	if viewerID != "" && viewerID != author.ID {
		err := s.db.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM follows WHERE user_id = $1 AND author_id = $2)
		`, viewerID, author.ID).Scan(&profile.Following)
		if err != nil {
			return Profile{}, paginate.Page[Post]{}, err
		}
	}
	return profile, posts, nil
}

// FollowFeed lists posts of the authors userID follows.
func (s *Service) FollowFeed(ctx context.Context, userID, page string) (paginate.Page[Post], error) {
	return s.listPosts(ctx, "WHERE p.author_id IN (SELECT author_id FROM follows WHERE user_id = $1)", page, userID)
}

// PostFilter narrows the administrative post listing. Zero fields match
// every post.
type PostFilter struct {
	Search string
	Since  time.Time
}

// ListPosts pages through all posts, newest first, matching filter. Search
// is a case-insensitive substring match on the text.
func (s *Service) ListPosts(ctx context.Context, filter PostFilter, page string) (paginate.Page[Post], error) {
	var conds []string
	var args []any
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+likeEscaper.Replace(search)+"%")
		conds = append(conds, "p.text ILIKE $"+strconv.Itoa(len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conds = append(conds, "p.pub_date >= $"+strconv.Itoa(len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	return s.listPosts(ctx, where, page, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Service) listPosts(ctx context.Context, where, page string, args ...any) (paginate.Page[Post], error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM posts p `+where, args...).Scan(&count); err != nil {
		return paginate.Page[Post]{}, fmt.Errorf("count posts: %w", err)
	}
	window := paginate.New(count, page)

	limitArg := len(args) + 1
	query := `SELECT ` + postColumns + ` ` + postSource + ` ` + where +
		` ORDER BY p.pub_date DESC LIMIT $` + strconv.Itoa(limitArg) + ` OFFSET $` + strconv.Itoa(limitArg+1)
	rows, err := s.db.Query(ctx, query, append(args, window.Limit, window.Offset)...)
	if err != nil {
		return paginate.Page[Post]{}, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var items []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return paginate.Page[Post]{}, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return paginate.Page[Post]{}, err
	}
	return paginate.Of(window, items), nil
}

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	var g Group
	if err := row.Scan(&p.ID, &p.Text, &p.PubDate, &p.Image, &p.Author.ID, &p.Author.Username, &g.ID, &g.Slug, &g.Title); err != nil {
		return Post{}, err
	}
	if g.ID != "" {
		p.Group = &g
	}
	return p, nil
}

// Post loads a single post. Malformed ids are reported as ErrNotFound.
func (s *Service) Post(ctx context.Context, id string) (Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Post{}, ErrNotFound
	}
	p, err := scanPost(s.db.QueryRow(ctx, `SELECT `+postColumns+` `+postSource+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	return p, err
}

// PostDetail loads a post with its comments, newest first, and the number
// of posts its author has written.
func (s *Service) PostDetail(ctx context.Context, id string) (Detail, error) {
	post, err := s.Post(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.post_id, COALESCE(u.username, ''), c.text, c.created
		FROM comments c
		LEFT JOIN users u ON u.id = c.author_id
		WHERE c.post_id = $1
		ORDER BY c.created DESC
	`, post.ID)
	if err != nil {
		return Detail{}, err
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.Author, &c.Text, &c.Created); err != nil {
			return Detail{}, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return Detail{}, err
	}

	var count int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM posts WHERE author_id = $1`, post.Author.ID).Scan(&count); err != nil {
		return Detail{}, err
	}
	return Detail{Post: post, Comments: comments, PostsCount: count}, nil
}

// CleanPost validates form and resolves its group. The returned input has
// no image; callers attach one after storing the upload.
func (s *Service) CleanPost(ctx context.Context, form PostForm) (PostInput, error) {
	if err := form.clean(); err != nil {
		return PostInput{}, err
	}
	in := PostInput{Text: form.Text}
	if form.Group == "" {
		return in, nil
	}

	var g Group
	err := s.db.QueryRow(ctx, `
		SELECT id, title, slug, description FROM groups WHERE id = $1
	`, form.Group).Scan(&g.ID, &g.Title, &g.Slug, &g.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return PostInput{}, &ValidationError{Fields: map[string]string{"group": choiceMessage}}
	}
	if err != nil {
		return PostInput{}, err
	}
	in.Group = &g
	return in, nil
}

func (s *Service) CreatePost(ctx context.Context, author auth.Viewer, in PostInput) (Post, error) {
	p := Post{
		ID:     uuid.NewString(),
		Text:   in.Text,
		Image:  in.Image,
		Author: Author{ID: author.ID, Username: author.Username},
		Group:  in.Group,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO posts (id, text, author_id, group_id, image)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING pub_date
	`, p.ID, p.Text, p.Author.ID, groupID(in.Group), p.Image)
	if err := row.Scan(&p.PubDate); err != nil {
		return Post{}, fmt.Errorf("insert post: %w", err)
	}

	if s.notifier != nil {
		payload, err := json.Marshal(p)
		if err != nil {
			log.Printf("encode post %s event: %v", p.ID, err)
		} else {
			s.notifier.Broadcast(p.Author.Username, payload)
		}
	}
	return p, nil
}

// UpdatePost rewrites text and group of a post written by editor. An empty
// in.Image keeps the stored image; pub_date never changes.
func (s *Service) UpdatePost(ctx context.Context, editor auth.Viewer, id string, in PostInput) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE posts
		SET text = $3, group_id = $4, image = COALESCE(NULLIF($5, ''), image)
		WHERE id = $1 AND author_id = $2
	`, id, editor.ID, in.Text, groupID(in.Group), in.Image)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAuthor
	}
	return nil
}

// SetPostGroup moves a post into the group with slug, or out of any group
// when slug is empty.
func (s *Service) SetPostGroup(ctx context.Context, postID, slug string) error {
	if _, err := uuid.Parse(postID); err != nil {
		return ErrNotFound
	}
	var group *Group
	if slug != "" {
		g, err := s.GroupBySlug(ctx, slug)
		if err != nil {
			return err
		}
		group = &g
	}

	tag, err := s.db.Exec(ctx, `UPDATE posts SET group_id = $2 WHERE id = $1`, postID, groupID(group))
	if err != nil {
		return fmt.Errorf("set post group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddComment attaches a comment by author to the post. Unknown posts yield
// ErrNotFound.
func (s *Service) AddComment(ctx context.Context, author auth.Viewer, postID string, form CommentForm) (Comment, error) {
	if _, err := uuid.Parse(postID); err != nil {
		return Comment{}, ErrNotFound
	}
	if err := form.clean(); err != nil {
		return Comment{}, err
	}

	c := Comment{
		ID:     uuid.NewString(),
		PostID: postID,
		Author: author.Username,
		Text:   form.Text,
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO comments (id, post_id, author_id, text)
		SELECT $1::uuid, p.id, $3::uuid, $4::text FROM posts p WHERE p.id = $2
		RETURNING created
	`, c.ID, c.PostID, author.ID, c.Text).Scan(&c.Created)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

func (s *Service) Follow(ctx context.Context, viewer auth.Viewer, username string) error {
	author, err := s.authorByUsername(ctx, username)
	if err != nil {
		return err
	}
	if author.ID == viewer.ID {
		return ErrSelfFollow
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO follows (id, user_id, author_id)
		VALUES ($1,$2,$3)
	`, uuid.NewString(), viewer.ID, author.ID)
	if db.IsUniqueViolation(err) {
		return ErrAlreadyFollowing
	}
	return err
}

// Unfollow removes the edge if present; a missing edge is not an error.
func (s *Service) Unfollow(ctx context.Context, viewer auth.Viewer, username string) error {
	author, err := s.authorByUsername(ctx, username)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `DELETE FROM follows WHERE user_id = $1 AND author_id = $2`, viewer.ID, author.ID)
	return err
}

func (s *Service) authorByUsername(ctx context.Context, username string) (Author, error) {
	var a Author
	err := s.db.QueryRow(ctx, `
		SELECT id, username, full_name FROM users WHERE username = $1
	`, username).Scan(&a.ID, &a.Username, &a.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return Author{}, ErrNotFound
	}
	return a, err
}

func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.Query(ctx, `SELECT id, title, slug, description FROM groups ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []Group{}
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Title, &g.Slug, &g.Description); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Service) GroupBySlug(ctx context.Context, slug string) (Group, error) {
	var g Group
	err := s.db.QueryRow(ctx, `
		SELECT id, title, slug, description FROM groups WHERE slug = $1
	`, slug).Scan(&g.ID, &g.Title, &g.Slug, &g.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	return g, err
}

func (s *Service) CreateGroup(ctx context.Context, form GroupForm) (Group, error) {
	if err := form.clean(); err != nil {
		return Group{}, err
	}
	g := Group{ID: uuid.NewString(), Title: form.Title, Slug: form.Slug, Description: form.Description}
	_, err := s.db.Exec(ctx, `
		INSERT INTO groups (id, title, slug, description)
		VALUES ($1,$2,$3,$4)
	`, g.ID, g.Title, g.Slug, g.Description)
	if db.IsUniqueViolation(err) {
		return Group{}, &ValidationError{Fields: map[string]string{"slug": "Group with this slug already exists."}}
	}
	if err != nil {
		return Group{}, fmt.Errorf("insert group: %w", err)
	}
	return g, nil
}

// DeleteGroup removes a group. Its posts stay, with no group.
func (s *Service) DeleteGroup(ctx context.Context, slug string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM groups WHERE slug = $1`, slug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func groupID(g *Group) any {
	if g == nil {
		return nil
	}
	return g.ID
}
