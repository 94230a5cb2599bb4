package models

import "time"

type PostType string

const (
	PostDiscussion   PostType = "discussion"
	PostAnnouncement PostType = "announcement"
)

func (t PostType) Valid() bool { return t == PostDiscussion || t == PostAnnouncement }

// MaxPinnedPosts caps pinned posts per group.
const MaxPinnedPosts = 3

type GroupPost struct {
	ID        string    `db:"id" json:"id"`
	GroupID   string    `db:"group_id" json:"groupId"`
	AuthorID  *string   `db:"author_id" json:"authorId"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	Type      PostType  `db:"type" json:"type"`
	IsPinned  bool      `db:"is_pinned" json:"isPinned"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type PostWithAuthor struct {
	GroupPost
	Author *UserLite `json:"author"`
}

type GroupLite struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type PostWithGroup struct {
	GroupPost
	Group GroupLite `json:"group"`
}

type PostPatch struct {
	Title   *string
	Content *string
}
