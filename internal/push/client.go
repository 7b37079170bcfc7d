package push

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// Handler consumes raw push frames. It must never fail the transport; frame
// validation happens downstream.
type Handler interface {
	Ingest(ctx context.Context, frame []byte)
}

type Options struct {
	URL       string
	Token     string
	UserID    string
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Logger    zerolog.Logger
}

// Client subscribes to the per-user push channel over a websocket and forwards
// every text frame to the handler. Delivery upstream is at-least-once and
// unordered; the client only guarantees that frames are handed over one at a
// time in arrival order. Disconnects are retried with bounded exponential
// backoff until the context ends.
type Client struct {
	url       string
	token     string
	userID    string
	baseDelay time.Duration
	maxDelay  time.Duration
	handler   Handler
	log       zerolog.Logger
}

type subscribeFrame struct {
	Action string `json:"action"`
	UserID string `json:"userId"`
}

func NewClient(handler Handler, opts Options) (*Client, error) {
	if handler == nil {
		return nil, errMissingHandler
	}
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, errMissingURL
	}
	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		return nil, errMissingUserID
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &Client{
		url:       url,
		token:     strings.TrimSpace(opts.Token),
		userID:    userID,
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		handler:   handler,
		log:       opts.Logger,
	}, nil
}

// Run blocks until the context is cancelled.
func (c *Client) Run(ctx context.Context) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delivered, err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered > 0 {
			failures = 0
		}
		failures++
		delay := c.retryDelay(failures)
		c.log.Warn().Err(err).Dur("retryIn", delay).Msg("push channel disconnected")
		if waitErr := sleepContext(ctx, delay); waitErr != nil {
			return waitErr
		}
	}
}

func (c *Client) runOnce(ctx context.Context) (int, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return 0, err
	}
	defer conn.Close(websocket.StatusInternalError, "client closing")

	sub, err := json.Marshal(subscribeFrame{Action: "subscribe", UserID: c.userID})
	if err != nil {
		return 0, err
	}
	if err := conn.Write(ctx, websocket.MessageText, sub); err != nil {
		return 0, err
	}
	c.log.Info().Str("userId", c.userID).Msg("push channel connected")

	delivered := 0
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return delivered, err
		}
		if typ != websocket.MessageText {
			continue
		}
		c.handler.Ingest(ctx, data)
		delivered++
	}
}

func (c *Client) retryDelay(failures int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
