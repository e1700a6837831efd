package social

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"social/logging"
	"social/metrics"
	"social/models"
	"social/validation"
)

// Engagement owns posts and everything embedded in them: likes and comments.
// Each mutation is a single guarded write on the post document, so
// likes_count and comments_count cannot drift from their sets.
type Engagement struct {
	posts     PostRepository
	identity  IdentityResolver
	followers SocialUserRepository
	notifier  Notifier
	now       Clock
	newID     func() string
}

// EngagementOption customizes an Engagement.
type EngagementOption func(*Engagement)

// WithClock replaces the system clock.
func WithClock(c Clock) EngagementOption {
	return func(e *Engagement) { e.now = orSystem(c) }
}

// WithCommentIDs replaces the comment id generator.
func WithCommentIDs(gen func() string) EngagementOption {
	return func(e *Engagement) { e.newID = gen }
}

// WithNotifier sets the realtime notifier. followers is used to address
// post_created events and may be nil.
func WithNotifier(n Notifier, followers SocialUserRepository) EngagementOption {
	return func(e *Engagement) {
		e.notifier = orNop(n)
		e.followers = followers
	}
}

// NewEngagement returns an Engagement.
func NewEngagement(posts PostRepository, identity IdentityResolver, opts ...EngagementOption) *Engagement {
	e := &Engagement{
		posts:    posts,
		identity: identity,
		notifier: nopNotifier{},
		now:      systemClock,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreatePost validates in, confirms the author identity and stores the post.
// No post is written when the author cannot be resolved.
func (e *Engagement) CreatePost(ctx context.Context, author int64, in models.NewPost) (*models.PostDetail, error) {
	in.Tags = lowerTags(in.Tags)
	if err := validation.Struct(in); err != nil {
		return nil, models.Invalid(err.Error())
	}

	proj, err := e.identity.Get(ctx, author)
	if err != nil {
		return nil, err
	}

	now := e.now()
	post := &models.Post{
		AuthorUserID:     author,
		Content:          in.Content,
		Tags:             nonNil(in.Tags),
		PhotoLinks:       nonNil(in.PhotoLinks),
		UsersWhoGaveLike: []int64{},
		Comments:         []models.Comment{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	id, err := e.posts.InsertPost(ctx, post)
	if err != nil {
		return nil, err
	}
	post.ID = id

	logging.Ctx(ctx).Info().Str("post_id", id).Int64("user_id", author).Msg("post created")
	e.notifyFollowers(ctx, author, models.Event{
		Type:    models.EventPostCreated,
		Payload: map[string]any{"post_id": id, "author_id": author},
	})
	return detail(post, proj, author, []models.CommentDetail{}), nil
}

// GetPost returns a post hydrated for viewer. Comment authors are resolved
// one by one, each call with its own retry budget. Authors unknown upstream
// come back as nil.
func (e *Engagement) GetPost(ctx context.Context, viewer int64, postID string) (*models.PostDetail, error) {
	post, err := e.posts.FindPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	resolved := make(map[int64]*models.Projection)
	resolve := func(id int64) (*models.Projection, error) {
		if p, ok := resolved[id]; ok {
			return p, nil
		}
		p, err := e.identity.Get(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			logging.Ctx(ctx).Warn().Str("post_id", postID).Int64("user_id", id).Msg("author no longer exists")
			p, err = nil, nil
		}
		if err != nil {
			return nil, err
		}
		resolved[id] = p
		return p, nil
	}

	author, err := resolve(post.AuthorUserID)
	if err != nil {
		return nil, err
	}

	comments := make([]models.CommentDetail, 0, len(post.Comments))
	for _, c := range post.Comments {
		a, err := resolve(c.AuthorID)
		if err != nil {
			return nil, err
		}
		comments = append(comments, models.CommentDetail{
			ID:        c.ID,
			Author:    a,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}
	return detail(post, author, viewer, comments), nil
}

// UpdatePost merges the provided fields into the post and refreshes
// updated_at, even when no field is provided.
func (e *Engagement) UpdatePost(ctx context.Context, viewer int64, postID string, upd models.PostUpdate) (*models.PostDetail, error) {
	if upd.Tags != nil {
		tags := lowerTags(*upd.Tags)
		upd.Tags = &tags
	}
	if err := validation.Struct(upd); err != nil {
		return nil, models.Invalid(err.Error())
	}

	matched, err := e.posts.UpdatePost(ctx, postID, upd, e.now())
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, models.NotFound("Post", postID)
	}
	return e.GetPost(ctx, viewer, postID)
}

// DeletePost removes the post and returns how many posts were deleted.
func (e *Engagement) DeletePost(ctx context.Context, postID string) (int64, error) {
	n, err := e.posts.DeletePost(ctx, postID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.Ctx(ctx).Info().Str("post_id", postID).Msg("post deleted")
	}
	return n, nil
}

// Like adds userID to the post's likes. Liking twice is a NoOp.
func (e *Engagement) Like(ctx context.Context, userID int64, postID string) (outcome models.Outcome, err error) {
	defer func() { metrics.EngagementMutations.WithLabelValues("like", outcomeLabel(outcome, err)).Inc() }()

	outcome, err = e.posts.AddLike(ctx, postID, userID, e.now())
	if err != nil || outcome == models.NoOp {
		return outcome, err
	}
	e.notifyAuthor(ctx, postID, userID, models.EventPostLiked, map[string]any{"post_id": postID, "user_id": userID})
	return models.Applied, nil
}

// Unlike removes userID from the post's likes. Unliking a post that was not
// liked is a NoOp.
func (e *Engagement) Unlike(ctx context.Context, userID int64, postID string) (outcome models.Outcome, err error) {
	defer func() { metrics.EngagementMutations.WithLabelValues("unlike", outcomeLabel(outcome, err)).Inc() }()

	return e.posts.RemoveLike(ctx, postID, userID, e.now())
}

// AddComment appends a comment with a fresh id to the post.
func (e *Engagement) AddComment(ctx context.Context, postID string, author int64, body string) (c *models.Comment, err error) {
	defer func() { metrics.EngagementMutations.WithLabelValues("comment", outcomeLabel(models.Applied, err)).Inc() }()

	if strings.TrimSpace(body) == "" {
		return nil, models.Invalid("comment body is required")
	}
	if len([]rune(body)) > models.MaxContentLength {
		return nil, models.Invalid("comment body must be at most 512 characters")
	}

	now := e.now()
	comment := models.Comment{
		ID:        e.newID(),
		AuthorID:  author,
		Content:   body,
		CreatedAt: now,
	}
	if err := e.posts.AppendComment(ctx, postID, comment, now); err != nil {
		return nil, err
	}

	e.notifyAuthor(ctx, postID, author, models.EventPostCommented, map[string]any{
		"post_id":    postID,
		"comment_id": comment.ID,
		"user_id":    author,
	})
	return &comment, nil
}

// DeleteComment removes the comment. A comment that does not exist is a NoOp.
func (e *Engagement) DeleteComment(ctx context.Context, postID, commentID string) (outcome models.Outcome, err error) {
	defer func() { metrics.EngagementMutations.WithLabelValues("delete_comment", outcomeLabel(outcome, err)).Inc() }()

	return e.posts.RemoveComment(ctx, postID, commentID, e.now())
}

// notifyAuthor tells the post author about an engagement by actor. Lookup
// failures only cost the notification.
func (e *Engagement) notifyAuthor(ctx context.Context, postID string, actor int64, kind string, payload map[string]any) {
	if _, nop := e.notifier.(nopNotifier); nop {
		return
	}
	post, err := e.posts.FindPost(ctx, postID)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("post_id", postID).Msg("skipping engagement notification")
		return
	}
	if post.AuthorUserID == actor {
		return
	}
	e.notifier.Notify([]int64{post.AuthorUserID}, models.Event{Type: kind, Payload: payload})
}

func (e *Engagement) notifyFollowers(ctx context.Context, author int64, ev models.Event) {
	if _, nop := e.notifier.(nopNotifier); nop || e.followers == nil {
		return
	}
	u, err := e.followers.FindSocialUser(ctx, author)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Int64("user_id", author).Msg("skipping post notification")
		return
	}
	if len(u.Followers) > 0 {
		e.notifier.Notify(u.Followers, ev)
	}
}

func detail(p *models.Post, author *models.Projection, viewer int64, comments []models.CommentDetail) *models.PostDetail {
	return &models.PostDetail{
		ID:            p.ID,
		Author:        author,
		Content:       p.Content,
		Tags:          nonNil(p.Tags),
		PhotoLinks:    nonNil(p.PhotoLinks),
		LikesCount:    p.LikesCount,
		LikedByMe:     p.LikedBy(viewer),
		Comments:      comments,
		CommentsCount: p.CommentsCount,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func lowerTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, strings.ToLower(t))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
