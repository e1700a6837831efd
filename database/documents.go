package database

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"social/models"
)

// postDocument is the storage shape of a post.
type postDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	AuthorUserID     int64              `bson:"author_user_id"`
	Content          string             `bson:"content"`
	Tags             []string           `bson:"tags"`
	PhotoLinks       []string           `bson:"photo_links"`
	LikesCount       int                `bson:"likes_count"`
	UsersWhoGaveLike []int64            `bson:"users_who_gave_like"`
	Comments         []commentDocument  `bson:"comments"`
	CommentsCount    int                `bson:"comments_count"`
	CreatedAt        time.Time          `bson:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at"`
}

type commentDocument struct {
	ID        string    `bson:"id"`
	AuthorID  int64     `bson:"author"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
}

// socialUserDocument is keyed by the external identity id.
type socialUserDocument struct {
	ID        int64    `bson:"_id"`
	Followers []int64  `bson:"followers"`
	Following []int64  `bson:"following"`
	Tags      []string `bson:"tags"`
}

func postToDocument(p *models.Post) postDocument {
	doc := postDocument{
		AuthorUserID:     p.AuthorUserID,
		Content:          p.Content,
		Tags:             nonNilStrings(p.Tags),
		PhotoLinks:       nonNilStrings(p.PhotoLinks),
		LikesCount:       p.LikesCount,
		UsersWhoGaveLike: nonNilIDs(p.UsersWhoGaveLike),
		Comments:         make([]commentDocument, 0, len(p.Comments)),
		CommentsCount:    p.CommentsCount,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	for _, c := range p.Comments {
		doc.Comments = append(doc.Comments, commentToDocument(c))
	}
	return doc
}

func (d *postDocument) toModel() *models.Post {
	p := &models.Post{
		ID:               d.ID.Hex(),
		AuthorUserID:     d.AuthorUserID,
		Content:          d.Content,
		Tags:             nonNilStrings(d.Tags),
		PhotoLinks:       nonNilStrings(d.PhotoLinks),
		LikesCount:       d.LikesCount,
		UsersWhoGaveLike: nonNilIDs(d.UsersWhoGaveLike),
		Comments:         make([]models.Comment, 0, len(d.Comments)),
		CommentsCount:    d.CommentsCount,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	for _, c := range d.Comments {
		p.Comments = append(p.Comments, models.Comment{
			ID:        c.ID,
			AuthorID:  c.AuthorID,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}
	return p
}

func commentToDocument(c models.Comment) commentDocument {
	return commentDocument{
		ID:        c.ID,
		AuthorID:  c.AuthorID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

func (d *socialUserDocument) toModel() *models.SocialUser {
	return &models.SocialUser{
		ID:        d.ID,
		Followers: nonNilIDs(d.Followers),
		Following: nonNilIDs(d.Following),
		Tags:      nonNilStrings(d.Tags),
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilIDs(s []int64) []int64 {
	if s == nil {
		return []int64{}
	}
	return s
}
