package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social/models"
)

type CreateSocialUserRequest struct {
	ID int64 `json:"id" binding:"required,min=1"`
}

type FollowRequest struct {
	UserID int64 `json:"user_id" binding:"required,min=1"`
}

type TagRequest struct {
	Tag string `json:"tag" binding:"required,socialtag"`
}

// CreateSocialUser registers an identity in the social graph.
func (h *Handler) CreateSocialUser(c *gin.Context) {
	var req CreateSocialUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	user, outcome, err := h.graph.CreateUser(ctx, req.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if outcome == models.NoOp {
		status = http.StatusOK
	}
	c.JSON(status, user)
}

// GetSocialUser returns a social user merged with its profile.
func (h *Handler) GetSocialUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "user id must be an integer")
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	profile, err := h.graph.Profile(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Follow makes the caller follow another user.
func (h *Handler) Follow(c *gin.Context) {
	var req FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	outcome, err := h.graph.Follow(ctx, callerID(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOutcome(c, outcome, gin.H{"message": "User followed", "user_id": req.UserID})
}

// Unfollow makes the caller stop following another user.
func (h *Handler) Unfollow(c *gin.Context) {
	var req FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	outcome, err := h.graph.Unfollow(ctx, callerID(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOutcome(c, outcome, gin.H{"message": "User unfollowed", "user_id": req.UserID})
}

// GetSubscribedTags lists the caller's tags.
func (h *Handler) GetSubscribedTags(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	tags, err := h.graph.SubscribedTags(ctx, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// SubscribeTag subscribes the caller to a tag.
func (h *Handler) SubscribeTag(c *gin.Context) {
	var req TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	outcome, err := h.graph.SubscribeTag(ctx, callerID(c), req.Tag)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOutcome(c, outcome, gin.H{"message": "Subscribed to tag"})
}

// UnsubscribeTag unsubscribes the caller from a tag.
func (h *Handler) UnsubscribeTag(c *gin.Context) {
	var req TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	outcome, err := h.graph.UnsubscribeTag(ctx, callerID(c), req.Tag)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOutcome(c, outcome, gin.H{"message": "Unsubscribed from tag"})
}

// GetFollowers pages the followers of user_id.
func (h *Handler) GetFollowers(c *gin.Context) {
	h.listGraph(c, true)
}

// GetFollowing pages the users user_id follows.
func (h *Handler) GetFollowing(c *gin.Context) {
	h.listGraph(c, false)
}

func (h *Handler) listGraph(c *gin.Context, followers bool) {
	userID, ok, err := idQuery(c, "user_id")
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		respondError(c, models.Invalid("user id is required"))
		return
	}
	params, err := listQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	var users []models.Projection
	if followers {
		users, err = h.graph.Followers(ctx, userID, params)
	} else {
		users, err = h.graph.Following(ctx, userID, params)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// SearchUsers proxies a name search to the identity service.
func (h *Handler) SearchUsers(c *gin.Context) {
	params, err := listQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	users, err := h.graph.SearchUsers(ctx, params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Health reports liveness and store reachability.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
