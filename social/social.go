// Package social holds the feed assembly and social graph engine: the
// follow graph (Graph), post engagement (Engagement) and the feed (Feed).
//
// The managers keep no state of their own. Everything durable lives behind
// the repositories, which are injected by the process bootstrap.
//
// Follow and unfollow touch two documents with two sequential writes and no
// cross-document transaction. A failure or a concurrent opposite operation
// between the writes leaves the pair asymmetric until a later call on the
// same pair repairs it.
package social

import (
	"context"
	"time"

	"social/models"
)

// PostRepository is the posts collection of the document store.
type PostRepository interface {
	InsertPost(ctx context.Context, p *models.Post) (string, error)
	FindPost(ctx context.Context, id string) (*models.Post, error)
	UpdatePost(ctx context.Context, id string, upd models.PostUpdate, now time.Time) (int64, error)
	DeletePost(ctx context.Context, id string) (int64, error)
	QueryPosts(ctx context.Context, q models.PostQuery) ([]models.Post, error)

	AddLike(ctx context.Context, postID string, userID int64, now time.Time) (models.Outcome, error)
	RemoveLike(ctx context.Context, postID string, userID int64, now time.Time) (models.Outcome, error)
	AppendComment(ctx context.Context, postID string, c models.Comment, now time.Time) error
	RemoveComment(ctx context.Context, postID, commentID string, now time.Time) (models.Outcome, error)
}

// SocialUserRepository is the social-users collection of the document store.
type SocialUserRepository interface {
	InsertSocialUser(ctx context.Context, id int64) (models.Outcome, error)
	FindSocialUser(ctx context.Context, id int64) (*models.SocialUser, error)

	AddFollowing(ctx context.Context, userID, target int64) (models.Outcome, error)
	RemoveFollowing(ctx context.Context, userID, target int64) (models.Outcome, error)
	AddFollower(ctx context.Context, userID, follower int64) (models.Outcome, error)
	RemoveFollower(ctx context.Context, userID, follower int64) (models.Outcome, error)
	AddTag(ctx context.Context, userID int64, tag string) (models.Outcome, error)
	RemoveTag(ctx context.Context, userID int64, tag string) (models.Outcome, error)
}

// IdentityResolver looks identities up in the external Users service.
type IdentityResolver interface {
	Get(ctx context.Context, id int64) (*models.Projection, error)
	GetMany(ctx context.Context, ids []int64) ([]models.Projection, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Search(ctx context.Context, q models.UserSearch) ([]models.Projection, error)
}

// Notifier delivers realtime events. Delivery is best effort.
type Notifier interface {
	Notify(recipients []int64, ev models.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify([]int64, models.Event) {}

// Clock returns the current time. Tests substitute a deterministic one.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func orSystem(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}

func outcomeLabel(o models.Outcome, err error) string {
	if err != nil {
		return "error"
	}
	return o.String()
}
