package social

import (
	"context"
	"errors"
	"strings"

	"social/logging"
	"social/metrics"
	"social/models"
)

// Feed assembles time-ordered pages of posts for a viewer.
//
// Posts are ordered by updated_at, most recent first. The order among posts
// with the exact same updated_at is whatever the store returns and is not
// stable across stores.
type Feed struct {
	posts    PostRepository
	users    SocialUserRepository
	identity IdentityResolver
}

// NewFeed returns a Feed.
func NewFeed(posts PostRepository, users SocialUserRepository, identity IdentityResolver) *Feed {
	return &Feed{posts: posts, users: users, identity: identity}
}

// ListFilter narrows a general listing. A nil Authors means any author.
type ListFilter struct {
	Tag     string
	Authors []int64
}

// MyFeed returns the page of posts written by the viewer and the accounts
// the viewer follows. A viewer without a social record sees only their own
// posts.
func (f *Feed) MyFeed(ctx context.Context, viewer int64, page models.Page) ([]models.FeedPost, error) {
	authors := []int64{viewer}

	u, err := f.users.FindSocialUser(ctx, viewer)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		for _, id := range u.Following {
			if id != viewer {
				authors = append(authors, id)
			}
		}
	}

	return f.assemble(ctx, viewer, models.PostQuery{
		Before:  page.Before,
		Authors: authors,
		Skip:    page.Skip(),
		Limit:   page.PerPage,
	})
}

// List returns a page of all posts, optionally restricted to a tag and to
// a set of authors. The viewer is not implicitly added to the author set.
func (f *Feed) List(ctx context.Context, viewer int64, page models.Page, filter ListFilter) ([]models.FeedPost, error) {
	return f.assemble(ctx, viewer, models.PostQuery{
		Before:  page.Before,
		Tag:     strings.ToLower(filter.Tag),
		Authors: filter.Authors,
		Skip:    page.Skip(),
		Limit:   page.PerPage,
	})
}

// assemble queries one page and enriches it. All distinct authors of the
// page are resolved with a single batched identity call. A post whose
// author is unknown upstream keeps a nil author instead of failing the page.
func (f *Feed) assemble(ctx context.Context, viewer int64, q models.PostQuery) ([]models.FeedPost, error) {
	if q.Authors != nil && len(q.Authors) == 0 {
		return []models.FeedPost{}, nil
	}

	posts, err := f.posts.QueryPosts(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		metrics.FeedPageSize.Observe(0)
		return []models.FeedPost{}, nil
	}

	ids := make([]int64, 0, len(posts))
	seen := make(map[int64]struct{}, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorUserID]; ok {
			continue
		}
		seen[p.AuthorUserID] = struct{}{}
		ids = append(ids, p.AuthorUserID)
	}

	found, err := f.identity.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	authors := make(map[int64]*models.Projection, len(found))
	for i := range found {
		authors[found[i].ID] = &found[i]
	}

	out := make([]models.FeedPost, 0, len(posts))
	missing := 0
	for i := range posts {
		p := &posts[i]
		author, ok := authors[p.AuthorUserID]
		if !ok {
			missing++
		}
		out = append(out, summary(p, author, viewer))
	}
	if missing > 0 {
		logging.Ctx(ctx).Warn().Int("posts", missing).Int64("viewer_id", viewer).
			Msg("feed page has posts with unresolved authors")
	}

	metrics.FeedPageSize.Observe(float64(len(out)))
	return out, nil
}

func summary(p *models.Post, author *models.Projection, viewer int64) models.FeedPost {
	fp := models.FeedPost{
		ID:            p.ID,
		Author:        author,
		Content:       p.Content,
		Tags:          nonNil(p.Tags),
		LikesCount:    p.LikesCount,
		LikedByMe:     p.LikedBy(viewer),
		CommentsCount: p.CommentsCount,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if len(p.PhotoLinks) > 0 {
		link := p.PhotoLinks[0]
		fp.MainPhotoLink = &link
	}
	return fp
}
