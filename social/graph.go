package social

import (
	"context"
	"errors"
	"strings"

	"social/logging"
	"social/metrics"
	"social/models"
	"social/validation"
)

// Graph owns the follow relation and tag subscriptions.
type Graph struct {
	users    SocialUserRepository
	identity IdentityResolver
	notifier Notifier
}

// NewGraph returns a Graph. notifier may be nil.
func NewGraph(users SocialUserRepository, identity IdentityResolver, notifier Notifier) *Graph {
	return &Graph{users: users, identity: identity, notifier: orNop(notifier)}
}

// CreateUser creates the social record of an existing identity. Creating it
// twice returns the stored record with a NoOp outcome.
func (g *Graph) CreateUser(ctx context.Context, id int64) (*models.SocialUser, models.Outcome, error) {
	exists, err := g.identity.Exists(ctx, id)
	if err != nil {
		return nil, models.NoOp, err
	}
	if !exists {
		return nil, models.NoOp, models.Invalid("User does not exist in the system!")
	}

	outcome, err := g.users.InsertSocialUser(ctx, id)
	if err != nil {
		return nil, models.NoOp, err
	}
	u, err := g.users.FindSocialUser(ctx, id)
	if err != nil {
		return nil, models.NoOp, err
	}
	return u, outcome, nil
}

// Profile returns the social record merged with the identity projection.
func (g *Graph) Profile(ctx context.Context, id int64) (*models.SocialProfile, error) {
	u, err := g.users.FindSocialUser(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := g.identity.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.SocialProfile{
		ID:        u.ID,
		Name:      p.Name,
		Photo:     p.Photo,
		Nickname:  p.Nickname,
		Followers: u.Followers,
		Following: u.Following,
		Tags:      u.Tags,
	}, nil
}

// Follow makes actor follow target. The actor side is written first, then
// the target side.
func (g *Graph) Follow(ctx context.Context, actor, target int64) (outcome models.Outcome, err error) {
	defer func() { metrics.GraphMutations.WithLabelValues("follow", outcomeLabel(outcome, err)).Inc() }()

	if actor == target {
		return models.NoOp, models.Invalid("Must follow another user")
	}

	self, err := g.users.FindSocialUser(ctx, actor)
	if err != nil {
		return models.NoOp, err
	}

	exists, err := g.identity.Exists(ctx, target)
	if err != nil {
		return models.NoOp, err
	}
	if !exists {
		return models.NoOp, models.Invalid("User does not exist in the system!")
	}

	if self.IsFollowing(target) {
		return models.NoOp, nil
	}

	if _, err := g.users.AddFollowing(ctx, actor, target); err != nil {
		return models.NoOp, err
	}

	// The target identity exists upstream but may never have been registered
	// here. Its record is created on first follow.
	if _, err := g.users.InsertSocialUser(ctx, target); err != nil {
		logging.Ctx(ctx).Error().Err(err).Int64("user_id", actor).Int64("target_id", target).
			Msg("follow left asymmetric: target record unavailable")
		return models.NoOp, err
	}
	if _, err := g.users.AddFollower(ctx, target, actor); err != nil {
		logging.Ctx(ctx).Error().Err(err).Int64("user_id", actor).Int64("target_id", target).
			Msg("follow left asymmetric: follower edge not written")
		return models.NoOp, err
	}

	g.notifier.Notify([]int64{target}, models.Event{
		Type:    models.EventNewFollower,
		Payload: map[string]any{"follower_id": actor},
	})
	return models.Applied, nil
}

// Unfollow is the inverse of Follow. The target side is only written when
// actor is actually listed among its followers.
func (g *Graph) Unfollow(ctx context.Context, actor, target int64) (outcome models.Outcome, err error) {
	defer func() { metrics.GraphMutations.WithLabelValues("unfollow", outcomeLabel(outcome, err)).Inc() }()

	if actor == target {
		return models.NoOp, models.Invalid("Must unfollow another user")
	}

	self, err := g.users.FindSocialUser(ctx, actor)
	if err != nil {
		return models.NoOp, err
	}
	if !self.IsFollowing(target) {
		return models.NoOp, nil
	}

	if _, err := g.users.RemoveFollowing(ctx, actor, target); err != nil {
		return models.NoOp, err
	}

	other, err := g.users.FindSocialUser(ctx, target)
	if errors.Is(err, models.ErrNotFound) {
		logging.Ctx(ctx).Warn().Int64("user_id", actor).Int64("target_id", target).
			Msg("unfollowed user has no social record")
		return models.Applied, nil
	}
	if err != nil {
		return models.NoOp, err
	}
	if !other.HasFollower(actor) {
		return models.Applied, nil
	}
	if _, err := g.users.RemoveFollower(ctx, target, actor); err != nil {
		logging.Ctx(ctx).Error().Err(err).Int64("user_id", actor).Int64("target_id", target).
			Msg("unfollow left asymmetric: follower edge not removed")
		return models.NoOp, err
	}
	return models.Applied, nil
}

// SubscribeTag adds tag, lower-cased, to the user's subscriptions.
func (g *Graph) SubscribeTag(ctx context.Context, userID int64, tag string) (outcome models.Outcome, err error) {
	defer func() { metrics.GraphMutations.WithLabelValues("subscribe_tag", outcomeLabel(outcome, err)).Inc() }()

	tag, err = normalizeTag(tag)
	if err != nil {
		return models.NoOp, err
	}
	return g.users.AddTag(ctx, userID, tag)
}

// UnsubscribeTag removes tag, lower-cased, from the user's subscriptions.
func (g *Graph) UnsubscribeTag(ctx context.Context, userID int64, tag string) (outcome models.Outcome, err error) {
	defer func() { metrics.GraphMutations.WithLabelValues("unsubscribe_tag", outcomeLabel(outcome, err)).Inc() }()

	tag, err = normalizeTag(tag)
	if err != nil {
		return models.NoOp, err
	}
	return g.users.RemoveTag(ctx, userID, tag)
}

// SubscribedTags lists the user's tags.
func (g *Graph) SubscribedTags(ctx context.Context, userID int64) ([]string, error) {
	u, err := g.users.FindSocialUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Tags, nil
}

// Followers pages the identities following userID.
func (g *Graph) Followers(ctx context.Context, userID int64, p models.ListParams) ([]models.Projection, error) {
	u, err := g.users.FindSocialUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return g.project(ctx, u.Followers, p)
}

// Following pages the identities userID follows.
func (g *Graph) Following(ctx context.Context, userID int64, p models.ListParams) ([]models.Projection, error) {
	u, err := g.users.FindSocialUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return g.project(ctx, u.Following, p)
}

// SearchUsers forwards a name search to the identity service.
func (g *Graph) SearchUsers(ctx context.Context, p models.ListParams) ([]models.Projection, error) {
	return g.identity.Search(ctx, models.UserSearch{Query: p.Query, Offset: p.Offset, Limit: p.Limit})
}

// project resolves ids into projections, keeping the stored order. Without a
// name filter only the requested slice is resolved. With one, the full id
// set and the name search are fetched independently and intersected, since
// the identity service cannot filter by both at once.
func (g *Graph) project(ctx context.Context, ids []int64, p models.ListParams) ([]models.Projection, error) {
	if len(ids) == 0 {
		return []models.Projection{}, nil
	}

	if p.Query == "" {
		page := window(ids, p.Offset, p.Limit)
		if len(page) == 0 {
			return []models.Projection{}, nil
		}
		found, err := g.identity.GetMany(ctx, page)
		if err != nil {
			return nil, err
		}
		return ordered(page, found), nil
	}

	all, err := g.identity.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	matches, err := g.identity.Search(ctx, models.UserSearch{Query: p.Query, Limit: models.MaxListLimit})
	if err != nil {
		return nil, err
	}
	keep := make(map[int64]struct{}, len(matches))
	for _, m := range matches {
		keep[m.ID] = struct{}{}
	}

	filtered := make([]models.Projection, 0, len(all))
	for _, proj := range ordered(ids, all) {
		if _, ok := keep[proj.ID]; ok {
			filtered = append(filtered, proj)
		}
	}
	return window(filtered, p.Offset, p.Limit), nil
}

func normalizeTag(tag string) (string, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if !validation.Tag(tag) {
		return "", models.Invalid("tag must match " + validation.TagPattern.String())
	}
	return tag, nil
}

// ordered returns the projections of found in the order of ids, dropping
// ids the identity service did not return.
func ordered(ids []int64, found []models.Projection) []models.Projection {
	byID := make(map[int64]models.Projection, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Projection, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// window returns s[offset:offset+limit], clamped. limit <= 0 means no limit.
func window[T any](s []T, offset, limit int) []T {
	if offset >= len(s) {
		return []T{}
	}
	end := len(s)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return s[offset:end]
}
