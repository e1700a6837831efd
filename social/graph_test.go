package social_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social/database"
	"social/models"
	"social/social"
)

func newGraph(t *testing.T, ids ...int64) (*social.Graph, *database.MemoryStore, *fakeIdentity) {
	t.Helper()
	store := database.NewMemoryStore()
	identity := newFakeIdentity(ids...)
	for _, id := range ids {
		_, err := store.InsertSocialUser(context.Background(), id)
		require.NoError(t, err)
	}
	return social.NewGraph(store, identity, nil), store, identity
}

// assertSymmetric checks b in following(a) iff a in followers(b) over ids.
func assertSymmetric(t *testing.T, store *database.MemoryStore, ids ...int64) {
	t.Helper()
	ctx := context.Background()
	for _, a := range ids {
		ua, err := store.FindSocialUser(ctx, a)
		require.NoError(t, err)
		for _, b := range ids {
			ub, err := store.FindSocialUser(ctx, b)
			require.NoError(t, err)
			assert.Equal(t, ua.IsFollowing(b), ub.HasFollower(a), "following(%d)∋%d vs followers(%d)∋%d", a, b, b, a)
		}
		assert.False(t, ua.IsFollowing(a), "user %d follows itself", a)
	}
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	g := social.NewGraph(store, newFakeIdentity(1), nil)

	u, outcome, err := g.CreateUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.Applied, outcome)
	assert.Equal(t, int64(1), u.ID)
	assert.Empty(t, u.Followers)

	u, outcome, err = g.CreateUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.NoOp, outcome)
	assert.Equal(t, int64(1), u.ID)

	_, _, err = g.CreateUser(ctx, 2)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestFollowIsIdempotentAndSymmetric(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newGraph(t, 1, 5)

	outcome, err := g.Follow(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, models.Applied, outcome)

	first, err := store.FindSocialUser(ctx, 1)
	require.NoError(t, err)

	outcome, err = g.Follow(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, models.NoOp, outcome)

	second, err := store.FindSocialUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	target, err := store.FindSocialUser(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, target.Followers)
	assertSymmetric(t, store, 1, 5)
}

// Followers and following are stored apart; reading one for the other
// would pass a symmetric test on a single pair but not here.
func TestFollowersAndFollowingAreDistinct(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newGraph(t, 1, 2, 3)

	_, err := g.Follow(ctx, 1, 2)
	require.NoError(t, err)
	_, err = g.Follow(ctx, 3, 1)
	require.NoError(t, err)

	followers, err := g.Followers(ctx, 1, models.ListParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.EqualValues(t, 3, followers[0].ID)

	following, err := g.Following(ctx, 1, models.ListParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.EqualValues(t, 2, following[0].ID)
}

func TestFollowSelfFails(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newGraph(t, 1)

	before, err := store.FindSocialUser(ctx, 1)
	require.NoError(t, err)

	_, err = g.Follow(ctx, 1, 1)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = g.Unfollow(ctx, 1, 1)
	assert.ErrorIs(t, err, models.ErrValidation)

	after, err := store.FindSocialUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFollowUnknownIdentity(t *testing.T) {
	g, _, _ := newGraph(t, 1)

	_, err := g.Follow(context.Background(), 1, 42)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestFollowUnknownActor(t *testing.T) {
	store := database.NewMemoryStore()
	g := social.NewGraph(store, newFakeIdentity(1, 2), nil)

	_, err := g.Follow(context.Background(), 1, 2)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFollowIdentityServiceDown(t *testing.T) {
	ctx := context.Background()
	g, store, identity := newGraph(t, 1, 2)
	identity.setDown(true)

	_, err := g.Follow(ctx, 1, 2)
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)

	u, err := store.FindSocialUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, u.Following)
}

func TestFollowCreatesTargetRecord(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	_, err := store.InsertSocialUser(ctx, 1)
	require.NoError(t, err)
	g := social.NewGraph(store, newFakeIdentity(1, 9), nil)

	_, err = g.Follow(ctx, 1, 9)
	require.NoError(t, err)
	assertSymmetric(t, store, 1, 9)
}

func TestFollowCrashLeavesKnownAsymmetry(t *testing.T) {
	ctx := context.Background()
	mem := database.NewMemoryStore()
	for _, id := range []int64{1, 2} {
		_, err := mem.InsertSocialUser(ctx, id)
		require.NoError(t, err)
	}
	g := social.NewGraph(crashingStore{mem}, newFakeIdentity(1, 2), nil)

	_, err := g.Follow(ctx, 1, 2)
	require.ErrorIs(t, err, models.ErrServiceUnavailable)

	actor, err := mem.FindSocialUser(ctx, 1)
	require.NoError(t, err)
	target, err := mem.FindSocialUser(ctx, 2)
	require.NoError(t, err)
	assert.True(t, actor.IsFollowing(2))
	assert.False(t, target.HasFollower(1))

	// A later unfollow on the pair cleans the actor side up without touching
	// the target side it never reached.
	healthy := social.NewGraph(mem, newFakeIdentity(1, 2), nil)
	outcome, err := healthy.Unfollow(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.Applied, outcome)
	assertSymmetric(t, mem, 1, 2)
}

func TestUnfollow(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newGraph(t, 1, 5, 10)

	_, err := g.Follow(ctx, 1, 5)
	require.NoError(t, err)
	_, err = g.Follow(ctx, 1, 10)
	require.NoError(t, err)
	_, err = g.Follow(ctx, 5, 1)
	require.NoError(t, err)

	outcome, err := g.Unfollow(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, models.Applied, outcome)

	outcome, err = g.Unfollow(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, models.NoOp, outcome)

	u1, err := store.FindSocialUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, u1.Following)
	assert.Equal(t, []int64{5}, u1.Followers)
	assertSymmetric(t, store, 1, 5, 10)
}

func TestUnfollowNeverFollowedIsNoOp(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newGraph(t, 1, 2)

	before, err := store.FindSocialUser(ctx, 2)
	require.NoError(t, err)

	outcome, err := g.Unfollow(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.NoOp, outcome)

	after, err := store.FindSocialUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSymmetryAfterSequence(t *testing.T) {
	ctx := context.Background()
	ids := []int64{1, 2, 3, 4}
	g, store, _ := newGraph(t, ids...)

	ops := []struct {
		follow bool
		a, b   int64
	}{
		{true, 1, 2}, {true, 2, 1}, {true, 3, 1}, {true, 1, 2}, {false, 1, 3},
		{true, 4, 3}, {false, 2, 1}, {true, 2, 4}, {false, 3, 1}, {true, 1, 4},
		{false, 1, 2}, {true, 3, 2},
	}
	for _, op := range ops {
		var err error
		if op.follow {
			_, err = g.Follow(ctx, op.a, op.b)
		} else {
			_, err = g.Unfollow(ctx, op.a, op.b)
		}
		require.NoError(t, err)
	}
	assertSymmetric(t, store, ids...)
}

func TestTagSubscriptions(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newGraph(t, 1)

	outcome, err := g.SubscribeTag(ctx, 1, "GoLang")
	require.NoError(t, err)
	assert.Equal(t, models.Applied, outcome)

	outcome, err = g.SubscribeTag(ctx, 1, "golang")
	require.NoError(t, err)
	assert.Equal(t, models.NoOp, outcome)

	tags, err := g.SubscribedTags(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"golang"}, tags)

	outcome, err = g.UnsubscribeTag(ctx, 1, "GOLANG")
	require.NoError(t, err)
	assert.Equal(t, models.Applied, outcome)

	outcome, err = g.UnsubscribeTag(ctx, 1, "golang")
	require.NoError(t, err)
	assert.Equal(t, models.NoOp, outcome)

	_, err = g.SubscribeTag(ctx, 1, "no spaces")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = g.SubscribeTag(ctx, 1, "x")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = g.SubscribeTag(ctx, 99, "golang")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFollowersPaging(t *testing.T) {
	ctx := context.Background()
	g, _, identity := newGraph(t, 1, 2, 3, 4)
	for _, id := range []int64{2, 3, 4} {
		_, err := g.Follow(ctx, id, 1)
		require.NoError(t, err)
	}
	identity.remove(3)

	all, err := g.Followers(ctx, 1, models.ListParams{Limit: 200})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, projectionIDs(all))

	page, err := g.Followers(ctx, 1, models.ListParams{Offset: 2, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, projectionIDs(page))

	past, err := g.Followers(ctx, 1, models.ListParams{Offset: 5, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestFollowersNameFilter(t *testing.T) {
	ctx := context.Background()
	g, _, identity := newGraph(t, 1, 2, 3, 4)
	identity.add(models.Projection{ID: 2, Name: "John Doe"})
	identity.add(models.Projection{ID: 3, Name: "Jane Smith"})
	identity.add(models.Projection{ID: 4, Name: "Janet Roe"})
	for _, id := range []int64{2, 3} {
		_, err := g.Follow(ctx, id, 1)
		require.NoError(t, err)
	}

	got, err := g.Followers(ctx, 1, models.ListParams{Query: "ja", Limit: 200})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Smith", got[0].Name)
}

func TestFollowersUnknownUser(t *testing.T) {
	g, _, _ := newGraph(t)

	_, err := g.Followers(context.Background(), 7, models.ListParams{Limit: 10})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	g, _, identity := newGraph(t, 1, 2)
	identity.add(models.Projection{ID: 1, Name: "Ana", Photo: "a.png", Nickname: "ana"})
	_, err := g.Follow(ctx, 1, 2)
	require.NoError(t, err)

	p, err := g.Profile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, []int64{2}, p.Following)
	assert.Empty(t, p.Followers)
}

func TestFollowNotifiesTarget(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	for _, id := range []int64{1, 2} {
		_, err := store.InsertSocialUser(ctx, id)
		require.NoError(t, err)
	}
	n := &recordingNotifier{}
	g := social.NewGraph(store, newFakeIdentity(1, 2), n)

	_, err := g.Follow(ctx, 1, 2)
	require.NoError(t, err)
	_, err = g.Follow(ctx, 1, 2)
	require.NoError(t, err)

	require.Len(t, n.sent, 1)
	assert.Equal(t, []int64{2}, n.sent[0].to)
	assert.Equal(t, models.EventNewFollower, n.sent[0].ev.Type)
}

func projectionIDs(ps []models.Projection) []int64 {
	out := make([]int64, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}
