package social_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social/database"
	"social/models"
	"social/social"
)

const missingPostID = "0123456789abcdef01234567"

func newEngagement(t *testing.T, ids ...int64) (*social.Engagement, *database.MemoryStore, *fakeIdentity) {
	t.Helper()
	store := database.NewMemoryStore()
	identity := newFakeIdentity(ids...)
	clock := tickingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return social.NewEngagement(store, identity, social.WithClock(clock)), store, identity
}

func createPost(t *testing.T, e *social.Engagement, author int64, content string) string {
	t.Helper()
	p, err := e.CreatePost(context.Background(), author, models.NewPost{Content: content})
	require.NoError(t, err)
	return p.ID
}

func assertCounters(t *testing.T, store *database.MemoryStore, postID string) *models.Post {
	t.Helper()
	p, err := store.FindPost(context.Background(), postID)
	require.NoError(t, err)
	assert.Equal(t, len(p.UsersWhoGaveLike), p.LikesCount, "likes_count drifted")
	assert.Equal(t, len(p.Comments), p.CommentsCount, "comments_count drifted")
	return p
}

func TestCreatePost(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngagement(t, 1)

	got, err := e.CreatePost(ctx, 1, models.NewPost{
		Content:    "hello world",
		Tags:       []string{"Go_Lang", "news"},
		PhotoLinks: []string{"https://example.com/a.png"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	require.NotNil(t, got.Author)
	assert.EqualValues(t, 1, got.Author.ID)
	assert.Equal(t, []string{"go_lang", "news"}, got.Tags)
	assert.Zero(t, got.LikesCount)
	assert.Empty(t, got.Comments)

	stored := assertCounters(t, store, got.ID)
	assert.Equal(t, stored.CreatedAt, stored.UpdatedAt)
	assert.NotNil(t, stored.UsersWhoGaveLike)
}

func TestCreatePostValidation(t *testing.T) {
	e, store, _ := newEngagement(t, 1)

	tests := []struct {
		name string
		in   models.NewPost
	}{
		{"empty content", models.NewPost{}},
		{"too long", models.NewPost{Content: strings.Repeat("x", 513)}},
		{"bad tag", models.NewPost{Content: "x", Tags: []string{"has space"}}},
		{"short tag", models.NewPost{Content: "x", Tags: []string{"a"}}},
		{"bad url", models.NewPost{Content: "x", PhotoLinks: []string{"not a url"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.CreatePost(context.Background(), 1, tt.in)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}

	posts, err := store.QueryPosts(context.Background(), models.PostQuery{Before: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCreatePostFailsClosed(t *testing.T) {
	ctx := context.Background()
	e, store, identity := newEngagement(t, 1)
	far := models.PostQuery{Before: time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)}

	_, err := e.CreatePost(ctx, 2, models.NewPost{Content: "who am i"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	identity.setDown(true)
	_, err = e.CreatePost(ctx, 1, models.NewPost{Content: "hello"})
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)

	posts, err := store.QueryPosts(ctx, far)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestLikeTwiceIsNoOp(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngagement(t, 1)
	id := createPost(t, e, 1, "x")

	outcome, err := e.Like(ctx, 7, id)
	require.NoError(t, err)
	assert.Equal(t, models.Applied, outcome)

	outcome, err = e.Like(ctx, 7, id)
	require.NoError(t, err)
	assert.Equal(t, models.NoOp, outcome)

	p := assertCounters(t, store, id)
	assert.Equal(t, 1, p.LikesCount)
}

func TestUnlike(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngagement(t, 1)
	id := createPost(t, e, 1, "x")

	outcome, err := e.Unlike(ctx, 7, id)
	require.NoError(t, err)
	assert.Equal(t, models.NoOp, outcome)

	_, err = e.Like(ctx, 7, id)
	require.NoError(t, err)
	outcome, err = e.Unlike(ctx, 7, id)
	require.NoError(t, err)
	assert.Equal(t, models.Applied, outcome)

	p := assertCounters(t, store, id)
	assert.Zero(t, p.LikesCount)

	_, err = e.Like(ctx, 7, missingPostID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCommentAddAndDelete(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngagement(t, 1, 3)
	id := createPost(t, e, 1, "x")
	before := assertCounters(t, store, id)

	c, err := e.AddComment(ctx, id, 3, "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	p := assertCounters(t, store, id)
	assert.Equal(t, 1, p.CommentsCount)
	assert.True(t, p.UpdatedAt.After(before.UpdatedAt))

	outcome, err := e.DeleteComment(ctx, id, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Applied, outcome)

	p = assertCounters(t, store, id)
	assert.Zero(t, p.CommentsCount)
	assert.Empty(t, p.Comments)

	outcome, err = e.DeleteComment(ctx, id, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NoOp, outcome)
	p = assertCounters(t, store, id)
	assert.Zero(t, p.CommentsCount)
}

func TestCommentErrors(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newEngagement(t, 1)
	id := createPost(t, e, 1, "x")

	_, err := e.AddComment(ctx, missingPostID, 1, "hi")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = e.AddComment(ctx, id, 1, "   ")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = e.AddComment(ctx, id, 1, strings.Repeat("y", 513))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = e.DeleteComment(ctx, missingPostID, "c")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCommentsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	var n int
	store := database.NewMemoryStore()
	e := social.NewEngagement(store, newFakeIdentity(1, 2),
		social.WithCommentIDs(func() string { n++; return fmt.Sprintf("c%d", n) }))
	id := createPost(t, e, 1, "x")

	for _, body := range []string{"one", "two", "three"} {
		_, err := e.AddComment(ctx, id, 2, body)
		require.NoError(t, err)
	}

	got, err := e.GetPost(ctx, 1, id)
	require.NoError(t, err)
	require.Len(t, got.Comments, 3)
	assert.Equal(t, "c1", got.Comments[0].ID)
	assert.Equal(t, "three", got.Comments[2].Content)
	require.NotNil(t, got.Comments[0].Author)
	assert.EqualValues(t, 2, got.Comments[0].Author.ID)
}

func TestCounterInvariantAfterMixedSequence(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngagement(t, 1)
	id := createPost(t, e, 1, "x")

	var commentIDs []string
	for i := 0; i < 20; i++ {
		user := int64(i % 4)
		switch i % 5 {
		case 0, 1:
			_, err := e.Like(ctx, user, id)
			require.NoError(t, err)
		case 2:
			_, err := e.Unlike(ctx, user, id)
			require.NoError(t, err)
		case 3:
			c, err := e.AddComment(ctx, id, user, "c")
			require.NoError(t, err)
			commentIDs = append(commentIDs, c.ID)
		case 4:
			if len(commentIDs) > 0 {
				_, err := e.DeleteComment(ctx, id, commentIDs[0])
				require.NoError(t, err)
			}
			_, err := e.DeleteComment(ctx, id, "never-existed")
			require.NoError(t, err)
		}
		assertCounters(t, store, id)
	}
}

func TestGetPost(t *testing.T) {
	ctx := context.Background()
	e, _, identity := newEngagement(t, 1, 2, 3)
	id := createPost(t, e, 1, "x")

	_, err := e.Like(ctx, 2, id)
	require.NoError(t, err)
	_, err = e.AddComment(ctx, id, 2, "first")
	require.NoError(t, err)
	_, err = e.AddComment(ctx, id, 3, "second")
	require.NoError(t, err)
	_, err = e.AddComment(ctx, id, 2, "third")
	require.NoError(t, err)
	identity.remove(3)

	got, err := e.GetPost(ctx, 2, id)
	require.NoError(t, err)
	assert.True(t, got.LikedByMe)
	assert.Equal(t, 3, got.CommentsCount)
	assert.Nil(t, got.Comments[1].Author, "deleted identity is null-projected")
	require.NotNil(t, got.Comments[2].Author)

	other, err := e.GetPost(ctx, 1, id)
	require.NoError(t, err)
	assert.False(t, other.LikedByMe)

	_, err = e.GetPost(ctx, 1, missingPostID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = e.GetPost(ctx, 1, "bad-id")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestGetPostIdentityDown(t *testing.T) {
	e, _, identity := newEngagement(t, 1)
	id := createPost(t, e, 1, "x")
	identity.setDown(true)

	_, err := e.GetPost(context.Background(), 1, id)
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
}

func TestUpdatePost(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngagement(t, 1)
	created, err := e.CreatePost(ctx, 1, models.NewPost{Content: "x", Tags: []string{"go"}})
	require.NoError(t, err)

	content := "edited"
	got, err := e.UpdatePost(ctx, 1, created.ID, models.PostUpdate{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)
	assert.Equal(t, []string{"go"}, got.Tags)
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt))

	stamped := got.UpdatedAt
	got, err = e.UpdatePost(ctx, 1, created.ID, models.PostUpdate{})
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(stamped), "empty update still refreshes updated_at")

	tags := []string{"Rust"}
	got, err = e.UpdatePost(ctx, 1, created.ID, models.PostUpdate{Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, []string{"rust"}, got.Tags)
	assert.Equal(t, "edited", got.Content)

	bad := []string{"no way"}
	_, err = e.UpdatePost(ctx, 1, created.ID, models.PostUpdate{Tags: &bad})
	assert.ErrorIs(t, err, models.ErrValidation)

	blank := ""
	_, err = e.UpdatePost(ctx, 1, created.ID, models.PostUpdate{Content: &blank})
	assert.ErrorIs(t, err, models.ErrValidation)
	got, err = e.GetPost(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content, "blank content is rejected, not stored")

	_, err = e.UpdatePost(ctx, 1, missingPostID, models.PostUpdate{Content: &content})
	assert.ErrorIs(t, err, models.ErrNotFound)

	assertCounters(t, store, created.ID)
}

func TestDeletePost(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newEngagement(t, 1)
	id := createPost(t, e, 1, "x")

	n, err := e.DeletePost(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = e.DeletePost(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestEngagementNotifications(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	identity := newFakeIdentity(1, 2, 3)
	n := &recordingNotifier{}
	g := social.NewGraph(store, identity, nil)
	e := social.NewEngagement(store, identity, social.WithNotifier(n, store))

	for _, id := range []int64{1, 2, 3} {
		_, err := store.InsertSocialUser(ctx, id)
		require.NoError(t, err)
	}
	_, err := g.Follow(ctx, 2, 1)
	require.NoError(t, err)

	id := createPost(t, e, 1, "x")
	_, err = e.Like(ctx, 3, id)
	require.NoError(t, err)
	_, err = e.Like(ctx, 3, id)
	require.NoError(t, err)
	_, err = e.Like(ctx, 1, id)
	require.NoError(t, err)
	_, err = e.AddComment(ctx, id, 2, "hey")
	require.NoError(t, err)

	assert.Equal(t, []string{models.EventPostCreated, models.EventPostLiked, models.EventPostCommented}, n.types())
	assert.Equal(t, []int64{2}, n.sent[0].to)
	assert.Equal(t, []int64{1}, n.sent[1].to)
}
