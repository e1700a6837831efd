package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"social/config"
	"social/handlers"
	"social/middleware"
	"social/websocket"
)

// Deps are the collaborators the router wires together.
type Deps struct {
	Handler *handlers.Handler
	Tokens  *middleware.TokenParser
	Hub     *websocket.Manager
}

// SetupRouter builds the engine with every route of the service.
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog())

	origins := cfg.Server.CORSOrigins
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", cfg.Auth.TokenHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = origins
	}
	router.Use(cors.New(corsCfg))

	h := deps.Handler

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if deps.Hub != nil {
		router.GET("/ws", gin.WrapH(websocket.Handler(deps.Hub, deps.Tokens)))
	}

	api := router.Group("/social")
	if !cfg.RateLimit.Disabled {
		api.Use(middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)))
	}
	api.Use(middleware.Auth(deps.Tokens, cfg.Auth.TokenHeader))

	// Posts
	api.POST("/posts", h.CreatePost)
	api.GET("/posts", h.ListPosts)
	api.GET("/posts/:id", h.GetPost)
	api.PATCH("/posts/:id", h.UpdatePost)
	api.DELETE("/posts/:id", h.DeletePost)
	api.POST("/posts/:id/like", h.LikePost)
	api.POST("/posts/:id/unlike", h.UnlikePost)
	api.POST("/posts/:id/comments", h.CommentPost)
	api.DELETE("/posts/:id/comments", h.DeleteComment)

	// Social users
	api.POST("/users", h.CreateSocialUser)
	api.GET("/users/me/feed", h.GetMyFeed)
	api.GET("/users/me/tags", h.GetSubscribedTags)
	api.GET("/users/:id", h.GetSocialUser)
	api.POST("/users/follow", h.Follow)
	api.POST("/users/unfollow", h.Unfollow)
	api.POST("/users/tags/subscribe", h.SubscribeTag)
	api.POST("/users/tags/unsubscribe", h.UnsubscribeTag)

	// Identity listings
	api.GET("/user", h.SearchUsers)
	api.GET("/user/followers", h.GetFollowers)
	api.GET("/user/following", h.GetFollowing)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/social") {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Endpoint not found",
				"path":  c.Request.URL.Path,
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}
