package posts

import "time"

type Group struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

// Post belongs to exactly one author and at most one group. Image is the
// path relative to the media root, empty when the post has none.
type Post struct {
	ID      string    `json:"id"`
	Text    string    `json:"text"`
	PubDate time.Time `json:"pub_date"`
	Image   string    `json:"image,omitempty"`
	Author  Author    `json:"author"`
	Group   *Group    `json:"group"`
}

// Comment.Author is empty once the commenting user has been deleted.
type Comment struct {
	ID      string    `json:"id"`
	PostID  string    `json:"post_id"`
	Author  string    `json:"author"`
	Text    string    `json:"text"`
	Created time.Time `json:"created"`
}

type Follow struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	AuthorID string `json:"author_id"`
}

type Profile struct {
	Author     Author `json:"author"`
	PostsCount int    `json:"posts_count"`
	Following  bool   `json:"following"`
}

type Detail struct {
	Post       Post      `json:"post"`
	Comments   []Comment `json:"comments"`
	PostsCount int       `json:"user_posts_count"`
}

// PostInput is a validated post form with its group resolved.
type PostInput struct {
	Text  string
	Group *Group
	Image string
}
