package models

import "time"

// MaxContentLength bounds post and comment bodies.
const MaxContentLength = 512

// Post is a published post together with its embedded engagement.
// LikesCount always equals len(UsersWhoGaveLike) and CommentsCount
// always equals len(Comments).
type Post struct {
	ID               string    `json:"id"`
	AuthorUserID     int64     `json:"author_user_id"`
	Content          string    `json:"content"`
	Tags             []string  `json:"tags"`
	PhotoLinks       []string  `json:"photo_links"`
	LikesCount       int       `json:"likes_count"`
	UsersWhoGaveLike []int64   `json:"users_who_gave_like"`
	Comments         []Comment `json:"comments"`
	CommentsCount    int       `json:"comments_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// LikedBy reports whether userID is in the post's like set.
func (p *Post) LikedBy(userID int64) bool {
	for _, id := range p.UsersWhoGaveLike {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment is embedded in a Post, ordered by insertion.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  int64     `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPost is the input of a post creation.
type NewPost struct {
	Content    string   `validate:"required,max=512"`
	Tags       []string `validate:"omitempty,dive,socialtag"`
	PhotoLinks []string `validate:"omitempty,dive,url"`
}

// PostUpdate carries the fields of a partial update. Nil fields are left untouched.
type PostUpdate struct {
	Content    *string   `validate:"omitnil,min=1,max=512"`
	Tags       *[]string `validate:"omitempty,dive,socialtag"`
	PhotoLinks *[]string `validate:"omitempty,dive,url"`
}

// Empty reports whether the update carries no field at all.
func (u PostUpdate) Empty() bool {
	return u.Content == nil && u.Tags == nil && u.PhotoLinks == nil
}

// PostQuery filters and pages the posts collection.
// A nil Authors means no author restriction; a non-nil empty slice matches nothing.
type PostQuery struct {
	Before  time.Time
	Tag     string
	Authors []int64
	Skip    int
	Limit   int
}

// PostDetail is a single post as returned to a viewer.
type PostDetail struct {
	ID            string          `json:"id"`
	Author        *Projection     `json:"author"`
	Content       string          `json:"content"`
	Tags          []string        `json:"tags"`
	PhotoLinks    []string        `json:"photo_links"`
	LikesCount    int             `json:"likes_count"`
	LikedByMe     bool            `json:"liked_by_me"`
	Comments      []CommentDetail `json:"comments"`
	CommentsCount int             `json:"comments_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CommentDetail is a comment with its author resolved.
// Author is nil when the identity no longer exists upstream.
type CommentDetail struct {
	ID        string      `json:"id"`
	Author    *Projection `json:"author"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// FeedPost is the summary variant of a post used in feeds and listings.
type FeedPost struct {
	ID            string      `json:"id"`
	Author        *Projection `json:"author"`
	Content       string      `json:"content"`
	Tags          []string    `json:"tags"`
	MainPhotoLink *string     `json:"main_photo_link,omitempty"`
	LikesCount    int         `json:"likes_count"`
	LikedByMe     bool        `json:"liked_by_me"`
	CommentsCount int         `json:"comments_count"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
