// Package users is the client of the external Users identity service.
//
// Every call is retried a fixed number of times with a per-attempt timeout
// and runs behind a circuit breaker. A remote 404 maps to models.ErrNotFound,
// anything else that survives the retries maps to models.ErrServiceUnavailable.
package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"social/logging"
	"social/metrics"
	"social/models"
)

// ServiceName tags errors raised by this client.
const ServiceName = "User service"

// Options configures a Client.
type Options struct {
	BaseURL    string
	Retries    int
	Timeout    time.Duration
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Client resolves identity projections from the Users service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	timeout    time.Duration
	retryDelay time.Duration
	cb         *gobreaker.CircuitBreaker[*response]
}

type response struct {
	status int
	body   []byte
}

// user is the wire shape of a Users service record. Only the projected
// fields are decoded.
type user struct {
	ID       int64   `json:"id"`
	Name     *string `json:"name"`
	Photo    *string `json:"photo"`
	Nickname *string `json:"nickname"`
}

type envelope[T any] struct {
	Message T `json:"message"`
}

// errRetryable marks an attempt whose failure may succeed on retry.
var errRetryable = errors.New("retryable users service failure")

// New builds a client. Zero options fall back to 3 attempts of 10s.
func New(opts Options) *Client {
	if opts.Retries < 1 {
		opts.Retries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	metrics.IdentityCircuitState.Set(0)
	cb := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "users-service",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("Opening users service circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.IdentityCircuitState.Set(stateToFloat(to))
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		retries:    opts.Retries,
		timeout:    opts.Timeout,
		retryDelay: opts.RetryDelay,
		cb:         cb,
	}
}

// Get resolves one identity.
func (c *Client) Get(ctx context.Context, id int64) (*models.Projection, error) {
	resp, err := c.get(ctx, "get", "/users/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusOK:
		var env envelope[user]
		if err := json.Unmarshal(resp.body, &env); err != nil {
			return nil, models.Unavailable(ServiceName, fmt.Errorf("decode user %d: %w", id, err))
		}
		p := env.Message.projection()
		return &p, nil
	case http.StatusNotFound:
		return nil, models.NotFound("User", id)
	default:
		return nil, models.Unavailable(ServiceName, fmt.Errorf("get user %d: unexpected status %d", id, resp.status))
	}
}

// Exists reports whether the identity is known upstream.
func (c *Client) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := c.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// GetMany resolves a batch of identities in one call. Ids unknown upstream
// are simply absent from the result.
func (c *Client) GetMany(ctx context.Context, ids []int64) ([]models.Projection, error) {
	if len(ids) == 0 {
		return []models.Projection{}, nil
	}
	return c.Search(ctx, models.UserSearch{IDs: ids, Limit: len(ids)})
}

// Search lists identities matching q. The id batch travels as one
// comma-separated ids parameter.
func (c *Client) Search(ctx context.Context, q models.UserSearch) ([]models.Projection, error) {
	params := url.Values{}
	if len(q.IDs) > 0 {
		parts := make([]string, 0, len(q.IDs))
		for _, id := range q.IDs {
			parts = append(parts, strconv.FormatInt(id, 10))
		}
		params.Set("ids", strings.Join(parts, ","))
	}
	if q.Query != "" {
		params.Set("query", q.Query)
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	resp, err := c.get(ctx, "search", "/users", params)
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusOK:
		var env envelope[[]user]
		if err := json.Unmarshal(resp.body, &env); err != nil {
			return nil, models.Unavailable(ServiceName, fmt.Errorf("decode users: %w", err))
		}
		out := make([]models.Projection, 0, len(env.Message))
		for _, u := range env.Message {
			out = append(out, u.projection())
		}
		return out, nil
	case http.StatusNoContent, http.StatusNotFound:
		return []models.Projection{}, nil
	default:
		return nil, models.Unavailable(ServiceName, fmt.Errorf("search users: unexpected status %d", resp.status))
	}
}

// get performs a GET with the retry budget. Transport errors and 5xx
// answers are retried; any other status is returned to the caller.
func (c *Client) get(ctx context.Context, op, path string, params url.Values) (*response, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if ctx.Err() != nil {
			return nil, c.interrupted(ctx, op, lastErr)
		}

		resp, err := c.cb.Execute(func() (*response, error) {
			return c.attempt(ctx, reqURL)
		})
		if err == nil {
			metrics.IdentityRequests.WithLabelValues(op, "ok").Inc()
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.IdentityRequests.WithLabelValues(op, "rejected").Inc()
			break
		}
		if ctx.Err() != nil {
			return nil, c.interrupted(ctx, op, lastErr)
		}

		logging.Ctx(ctx).Warn().Err(err).Str("service", ServiceName).Str("operation", op).
			Int("attempt", attempt).Int("max_attempts", c.retries).Msg("Users service call failed")

		if attempt < c.retries {
			metrics.IdentityRetries.Inc()
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, c.interrupted(ctx, op, lastErr)
			}
		}
	}

	metrics.IdentityRequests.WithLabelValues(op, "unavailable").Inc()
	return nil, models.Unavailable(ServiceName, lastErr)
}

// interrupted reports why the caller's context ended the retry loop. A
// cancellation is returned as is. An expired deadline means the service did
// not answer within the caller's budget and counts as unavailable.
func (c *Client) interrupted(ctx context.Context, op string, lastErr error) error {
	err := ctx.Err()
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	metrics.IdentityRequests.WithLabelValues(op, "unavailable").Inc()
	if lastErr != nil {
		err = fmt.Errorf("%w: %w", err, lastErr)
	}
	return models.Unavailable(ServiceName, err)
}

// attempt runs a single request under its own timeout.
func (c *Client) attempt(ctx context.Context, reqURL string) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errRetryable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", errRetryable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	}
	return &response{status: resp.StatusCode, body: body}, nil
}

func (u user) projection() models.Projection {
	return models.Projection{
		ID:       u.ID,
		Name:     deref(u.Name),
		Photo:    deref(u.Photo),
		Nickname: deref(u.Nickname),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
