// Package notify pushes trade events to an ntfy topic. Delivery is
// fire-and-forget: a failed push is logged and swallowed so it can never
// block or fail the entry cycle or the monitor sweep.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradeforge/gexpin/internal/position"
	"github.com/tradeforge/gexpin/internal/tradelog"
)

// Notifier is the outbound channel for trade lifecycle events.
type Notifier interface {
	SendEntry(ctx context.Context, pos position.Position)
	SendExit(ctx context.Context, rec tradelog.Record)
	SendRejection(ctx context.Context, mkt, gate, reason string)
	SendCycleError(ctx context.Context, mkt string, err error)
}

// Client implements the ntfy notification client.
type Client struct {
	httpClient *http.Client
	config     *Config
	logger     *zap.Logger
}

// NewClient creates a new ntfy client.
func NewClient(cfg *Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
	}
}

// SendEntry announces a confirmed fill.
func (c *Client) SendEntry(ctx context.Context, pos position.Position) {
	title := fmt.Sprintf("Entry: %s %s", pos.Market, pos.Strategy)
	c.send(ctx, title, FormatEntryMessage(pos), c.config.Tags+",inbox_tray", c.config.Priority)
}

// SendExit announces a closed trade.
func (c *Client) SendExit(ctx context.Context, rec tradelog.Record) {
	tag := "white_check_mark"
	if rec.ProfitLoss < 0 {
		tag = "x"
	}
	title := fmt.Sprintf("Exit: %s %s (%s)", rec.Market, rec.Strategy, rec.ExitReason)
	c.send(ctx, title, FormatExitMessage(rec), c.config.Tags+","+tag, c.config.Priority)
}

// SendRejection reports a gate rejection. Expected outcome, low priority.
func (c *Client) SendRejection(ctx context.Context, mkt, gate, reason string) {
	title := fmt.Sprintf("No entry: %s", mkt)
	c.send(ctx, title, fmt.Sprintf("Gate: %s\n%s", gate, reason), c.config.Tags, "low")
}

// SendCycleError reports an aborted evaluation cycle.
func (c *Client) SendCycleError(ctx context.Context, mkt string, err error) {
	title := fmt.Sprintf("Cycle aborted: %s", mkt)
	c.send(ctx, title, err.Error(), c.config.Tags+",warning", "high")
}

func (c *Client) send(ctx context.Context, title, message, tags, priority string) {
	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(c.config.Server, "/"), c.config.Topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		c.logger.Warn("failed to build notification", zap.Error(err))
		return
	}

	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", tags)

	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to send notification", zap.Error(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain response body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("notification failed",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url),
		)
		return
	}

	c.logger.Debug("notification sent", zap.String("title", title))
}

// NoopNotifier is a no-op implementation for when notifications are disabled.
type NoopNotifier struct{}

func (n *NoopNotifier) SendEntry(_ context.Context, _ position.Position)    {}
func (n *NoopNotifier) SendExit(_ context.Context, _ tradelog.Record)       {}
func (n *NoopNotifier) SendRejection(_ context.Context, _, _, _ string)     {}
func (n *NoopNotifier) SendCycleError(_ context.Context, _ string, _ error) {}

// New creates the appropriate notifier based on config.
func New(cfg *Config, logger *zap.Logger) Notifier {
	if !cfg.Enabled {
		return &NoopNotifier{}
	}
	return NewClient(cfg, logger)
}
