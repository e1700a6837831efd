package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social/models"
	"social/social"
)

type CreatePostRequest struct {
	Content    string   `json:"content" binding:"required"`
	Tags       []string `json:"tags"`
	PhotoLinks []string `json:"photo_links"`
}

type UpdatePostRequest struct {
	Content    *string   `json:"content"`
	Tags       *[]string `json:"tags"`
	PhotoLinks *[]string `json:"photo_links"`
}

type CommentRequest struct {
	Body string `json:"body" binding:"required"`
}

type DeleteCommentRequest struct {
	CommentID string `json:"comment_id" binding:"required"`
}

// CreatePost publishes a post authored by the caller.
func (h *Handler) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	post, err := h.engagement.CreatePost(ctx, callerID(c), models.NewPost{
		Content:    req.Content,
		Tags:       req.Tags,
		PhotoLinks: req.PhotoLinks,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// GetPost returns a post with its comments.
func (h *Handler) GetPost(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	post, err := h.engagement.GetPost(ctx, callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// UpdatePost applies a partial update.
func (h *Handler) UpdatePost(c *gin.Context) {
	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	post, err := h.engagement.UpdatePost(ctx, callerID(c), c.Param("id"), models.PostUpdate{
		Content:    req.Content,
		Tags:       req.Tags,
		PhotoLinks: req.PhotoLinks,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost removes a post.
func (h *Handler) DeletePost(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id := c.Param("id")
	n, err := h.engagement.DeletePost(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if n == 0 {
		respondError(c, models.NotFound("Post", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// ListPosts lists all posts, optionally filtered by tag and author.
func (h *Handler) ListPosts(c *gin.Context) {
	page, err := pageQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	filter := social.ListFilter{Tag: c.Query("tag")}
	author, ok, err := idQuery(c, "author")
	if err != nil {
		respondError(c, err)
		return
	}
	if ok {
		filter.Authors = []int64{author}
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	posts, err := h.feed.List(ctx, callerID(c), page, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// GetMyFeed returns the caller's feed.
func (h *Handler) GetMyFeed(c *gin.Context) {
	page, err := pageQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	posts, err := h.feed.MyFeed(ctx, callerID(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// LikePost likes a post as the caller.
func (h *Handler) LikePost(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	outcome, err := h.engagement.Like(ctx, callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOutcome(c, outcome, gin.H{"message": "Post liked"})
}

// UnlikePost removes the caller's like.
func (h *Handler) UnlikePost(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	outcome, err := h.engagement.Unlike(ctx, callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOutcome(c, outcome, gin.H{"message": "Post unliked"})
}

// CommentPost adds a comment by the caller.
func (h *Handler) CommentPost(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	comment, err := h.engagement.AddComment(ctx, c.Param("id"), callerID(c), req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// DeleteComment removes a comment from a post.
func (h *Handler) DeleteComment(c *gin.Context) {
	var req DeleteCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	outcome, err := h.engagement.DeleteComment(ctx, c.Param("id"), req.CommentID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOutcome(c, outcome, gin.H{"comment_id": req.CommentID})
}
