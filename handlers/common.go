package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"social/logging"
	"social/middleware"
	"social/models"
	"social/social"
	"social/validation"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := validation.RegisterRules(v); err != nil {
			panic("handlers: register validation rules: " + err.Error())
		}
	}
}

// Pinger reports whether the document store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler maps HTTP requests onto the social managers.
type Handler struct {
	graph      *social.Graph
	engagement *social.Engagement
	feed       *social.Feed
	store      Pinger
	timeout    time.Duration
}

// New returns a Handler. timeout bounds every request's work; zero means 30s.
func New(graph *social.Graph, engagement *social.Engagement, feed *social.Feed, store Pinger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		graph:      graph,
		engagement: engagement,
		feed:       feed,
		store:      store,
		timeout:    timeout,
	}
}

// requestContext derives the work context from the request, so a client
// disconnect abandons in-flight store and identity calls.
func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// callerID returns the authenticated user id set by middleware.Auth.
func callerID(c *gin.Context) int64 {
	return c.GetInt64(middleware.UserIDKey)
}

// respondError writes the status matching err's kind.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "Internal server error"

	switch {
	case errors.Is(err, models.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrServiceUnavailable):
		msg = err.Error()
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads the answer.
		status = 499
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "Request timed out"
	}

	if status >= http.StatusInternalServerError {
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// respondOutcome writes body with 200 when the mutation was applied and an
// empty 204 when it was a no-op.
func respondOutcome(c *gin.Context, outcome models.Outcome, body any) {
	if outcome == models.NoOp {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// pageQuery reads time_offset, page and per_page, rejecting out-of-range
// values before they reach the feed.
func pageQuery(c *gin.Context) (models.Page, error) {
	page := models.Page{
		Before:  time.Now().UTC(),
		Page:    1,
		PerPage: models.DefaultPerPage,
	}

	if raw := c.Query("time_offset"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return page, models.Invalid("time_offset must be an RFC 3339 timestamp")
		}
		page.Before = t
	}

	var err error
	if page.Page, err = intQuery(c, "page", page.Page); err != nil {
		return page, err
	}
	if page.PerPage, err = intQuery(c, "per_page", page.PerPage); err != nil {
		return page, err
	}
	return page, page.Validate()
}

// listQuery reads offset, limit and query for identity listings.
func listQuery(c *gin.Context) (models.ListParams, error) {
	p := models.ListParams{Limit: models.DefaultListLimit, Query: c.Query("query")}

	var err error
	if p.Offset, err = intQuery(c, "offset", 0); err != nil {
		return p, err
	}
	if p.Limit, err = intQuery(c, "limit", p.Limit); err != nil {
		return p, err
	}
	return p, p.Validate()
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.Invalid(name + " must be an integer")
	}
	return v, nil
}

func idQuery(c *gin.Context, name string) (int64, bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return 0, false, models.Invalid(name + " must be a positive integer")
	}
	return v, true, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unrecognized time format")
}
