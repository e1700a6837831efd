package database

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"social/models"
)

// MemoryStore is an in-process store with the same semantics as MongoStore.
// Every operation holds one mutex, which gives the same per-document write
// serialization the document store provides.
type MemoryStore struct {
	mu    sync.Mutex
	seq   int64
	posts map[string]*memoryPost
	users map[int64]*models.SocialUser
}

type memoryPost struct {
	seq  int64
	post models.Post
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts: make(map[string]*memoryPost),
		users: make(map[int64]*models.SocialUser),
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close(context.Context) error { return nil }

func (m *MemoryStore) InsertPost(ctx context.Context, p *models.Post) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := primitive.NewObjectID().Hex()
	stored := clonePost(*p)
	stored.ID = id
	m.seq++
	m.posts[id] = &memoryPost{seq: m.seq, post: stored}
	return id, nil
}

func (m *MemoryStore) FindPost(ctx context.Context, id string) (*models.Post, error) {
	if _, err := parseObjectID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.posts[id]
	if !ok {
		return nil, models.NotFound("Post", id)
	}
	p := clonePost(rec.post)
	return &p, nil
}

func (m *MemoryStore) UpdatePost(ctx context.Context, id string, upd models.PostUpdate, now time.Time) (int64, error) {
	if _, err := parseObjectID(id); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.posts[id]
	if !ok {
		return 0, nil
	}
	if upd.Content != nil {
		rec.post.Content = *upd.Content
	}
	if upd.Tags != nil {
		rec.post.Tags = slices.Clone(nonNilStrings(*upd.Tags))
	}
	if upd.PhotoLinks != nil {
		rec.post.PhotoLinks = slices.Clone(nonNilStrings(*upd.PhotoLinks))
	}
	rec.post.UpdatedAt = now
	return 1, nil
}

func (m *MemoryStore) DeletePost(ctx context.Context, id string) (int64, error) {
	if _, err := parseObjectID(id); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[id]; !ok {
		return 0, nil
	}
	delete(m.posts, id)
	return 1, nil
}

// QueryPosts orders by updated_at descending. Ties go to the most recently
// inserted post.
func (m *MemoryStore) QueryPosts(ctx context.Context, q models.PostQuery) ([]models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*memoryPost, 0, len(m.posts))
	for _, rec := range m.posts {
		p := &rec.post
		if p.UpdatedAt.After(q.Before) {
			continue
		}
		if q.Tag != "" && !slices.Contains(p.Tags, q.Tag) {
			continue
		}
		if q.Authors != nil && !slices.Contains(q.Authors, p.AuthorUserID) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.post.UpdatedAt.Equal(b.post.UpdatedAt) {
			return a.post.UpdatedAt.After(b.post.UpdatedAt)
		}
		return a.seq > b.seq
	})

	if q.Skip >= len(matched) {
		return []models.Post{}, nil
	}
	matched = matched[q.Skip:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	posts := make([]models.Post, 0, len(matched))
	for _, rec := range matched {
		posts = append(posts, clonePost(rec.post))
	}
	return posts, nil
}

func (m *MemoryStore) AddLike(ctx context.Context, postID string, userID int64, now time.Time) (models.Outcome, error) {
	return m.mutatePost(ctx, postID, func(p *models.Post) bool {
		if p.LikedBy(userID) {
			return false
		}
		p.UsersWhoGaveLike = append(p.UsersWhoGaveLike, userID)
		p.LikesCount++
		p.UpdatedAt = now
		return true
	})
}

func (m *MemoryStore) RemoveLike(ctx context.Context, postID string, userID int64, now time.Time) (models.Outcome, error) {
	return m.mutatePost(ctx, postID, func(p *models.Post) bool {
		i := slices.Index(p.UsersWhoGaveLike, userID)
		if i < 0 {
			return false
		}
		p.UsersWhoGaveLike = slices.Delete(p.UsersWhoGaveLike, i, i+1)
		p.LikesCount--
		p.UpdatedAt = now
		return true
	})
}

func (m *MemoryStore) AppendComment(ctx context.Context, postID string, c models.Comment, now time.Time) error {
	_, err := m.mutatePost(ctx, postID, func(p *models.Post) bool {
		p.Comments = append(p.Comments, c)
		p.CommentsCount++
		p.UpdatedAt = now
		return true
	})
	return err
}

func (m *MemoryStore) RemoveComment(ctx context.Context, postID, commentID string, now time.Time) (models.Outcome, error) {
	return m.mutatePost(ctx, postID, func(p *models.Post) bool {
		i := slices.IndexFunc(p.Comments, func(c models.Comment) bool { return c.ID == commentID })
		if i < 0 {
			return false
		}
		p.Comments = slices.Delete(p.Comments, i, i+1)
		p.CommentsCount--
		p.UpdatedAt = now
		return true
	})
}

// mutatePost runs fn on the stored post under the lock. fn reports whether
// it changed anything.
func (m *MemoryStore) mutatePost(ctx context.Context, postID string, fn func(p *models.Post) bool) (models.Outcome, error) {
	if _, err := parseObjectID(postID); err != nil {
		return models.NoOp, err
	}
	if err := ctx.Err(); err != nil {
		return models.NoOp, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.posts[postID]
	if !ok {
		return models.NoOp, models.NotFound("Post", postID)
	}
	if !fn(&rec.post) {
		return models.NoOp, nil
	}
	return models.Applied, nil
}

func (m *MemoryStore) InsertSocialUser(ctx context.Context, id int64) (models.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return models.NoOp, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; ok {
		return models.NoOp, nil
	}
	m.users[id] = &models.SocialUser{
		ID:        id,
		Followers: []int64{},
		Following: []int64{},
		Tags:      []string{},
	}
	return models.Applied, nil
}

func (m *MemoryStore) FindSocialUser(ctx context.Context, id int64) (*models.SocialUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, models.NotFound("User", id)
	}
	return &models.SocialUser{
		ID:        u.ID,
		Followers: slices.Clone(u.Followers),
		Following: slices.Clone(u.Following),
		Tags:      slices.Clone(u.Tags),
	}, nil
}

func (m *MemoryStore) AddFollowing(ctx context.Context, userID, target int64) (models.Outcome, error) {
	return m.mutateUser(ctx, userID, func(u *models.SocialUser) bool {
		return addID(&u.Following, target)
	})
}

func (m *MemoryStore) RemoveFollowing(ctx context.Context, userID, target int64) (models.Outcome, error) {
	return m.mutateUser(ctx, userID, func(u *models.SocialUser) bool {
		return removeID(&u.Following, target)
	})
}

func (m *MemoryStore) AddFollower(ctx context.Context, userID, follower int64) (models.Outcome, error) {
	return m.mutateUser(ctx, userID, func(u *models.SocialUser) bool {
		return addID(&u.Followers, follower)
	})
}

func (m *MemoryStore) RemoveFollower(ctx context.Context, userID, follower int64) (models.Outcome, error) {
	return m.mutateUser(ctx, userID, func(u *models.SocialUser) bool {
		return removeID(&u.Followers, follower)
	})
}

func (m *MemoryStore) AddTag(ctx context.Context, userID int64, tag string) (models.Outcome, error) {
	return m.mutateUser(ctx, userID, func(u *models.SocialUser) bool {
		if slices.Contains(u.Tags, tag) {
			return false
		}
		u.Tags = append(u.Tags, tag)
		return true
	})
}

func (m *MemoryStore) RemoveTag(ctx context.Context, userID int64, tag string) (models.Outcome, error) {
	return m.mutateUser(ctx, userID, func(u *models.SocialUser) bool {
		i := slices.Index(u.Tags, tag)
		if i < 0 {
			return false
		}
		u.Tags = slices.Delete(u.Tags, i, i+1)
		return true
	})
}

func (m *MemoryStore) mutateUser(ctx context.Context, userID int64, fn func(u *models.SocialUser) bool) (models.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return models.NoOp, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return models.NoOp, models.NotFound("User", userID)
	}
	if !fn(u) {
		return models.NoOp, nil
	}
	return models.Applied, nil
}

func addID(ids *[]int64, id int64) bool {
	if slices.Contains(*ids, id) {
		return false
	}
	*ids = append(*ids, id)
	return true
}

func removeID(ids *[]int64, id int64) bool {
	i := slices.Index(*ids, id)
	if i < 0 {
		return false
	}
	*ids = slices.Delete(*ids, i, i+1)
	return true
}

func clonePost(p models.Post) models.Post {
	p.Tags = slices.Clone(nonNilStrings(p.Tags))
	p.PhotoLinks = slices.Clone(nonNilStrings(p.PhotoLinks))
	p.UsersWhoGaveLike = slices.Clone(nonNilIDs(p.UsersWhoGaveLike))
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	} else {
		p.Comments = slices.Clone(p.Comments)
	}
	return p
}
