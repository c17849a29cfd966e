// Package apns sends pushes to iOS devices through the Apple Push
// Notification service using token-based (ES256 assertion) auth.
package apns

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"

	"bandscan-backend/pkg/push"
)

// APNSClient is the subset of the apns2 client the adapter uses. Tests
// substitute a mock.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// Config holds the credentials and knobs for the APNs connection.
type Config struct {
	KeyFile       string
	KeyID         string
	TeamID        string
	Topic         string
	Sandbox       bool
	TokenValidity time.Duration
	RenewalMargin time.Duration
}

// Client delivers one push per device token. APNs has no multicast
// endpoint, so a batch is a sequential loop of unary requests.
type Client struct {
	client  APNSClient
	assert  *AssertionManager
	topic   string
	timeout time.Duration
	logger  zerolog.Logger
}

// New reads the .p8 key, prepares the assertion manager and connects the
// HTTP/2 client. Parsing happens here so bad credentials fail at startup.
func New(cfg Config, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	p8, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read APNs key file: %w", err)
	}

	assert, err := NewAssertionManager(p8, cfg.KeyID, cfg.TeamID, cfg.TokenValidity, cfg.RenewalMargin)
	if err != nil {
		return nil, err
	}

	client := apns2.NewTokenClient(assert.Token())
	if cfg.Sandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}

	return &Client{
		client:  client,
		assert:  assert,
		topic:   cfg.Topic,
		timeout: timeout,
		logger:  logger.With().Str("component", "apns").Logger(),
	}, nil
}

func (c *Client) Platform() string {
	return push.PlatformIOS
}

// Send pushes the payload to every token in turn and reports a per-token
// outcome. A failed assertion renewal marks the whole batch retryable
// because no request was attempted.
func (c *Client) Send(ctx context.Context, tokens []string, msg push.Payload) []push.Result {
	if len(tokens) == 0 {
		return nil
	}

	if err := c.assert.Refresh(); err != nil {
		c.logger.Error().Err(err).Msg("assertion refresh failed")
		return push.RetryAll(tokens, fmt.Sprintf("apns assertion refresh failed: %v", err))
	}

	builder := payload.NewPayload().
		AlertTitle(msg.Title).
		AlertBody(msg.Body).
		Sound("default")
	for k, v := range msg.Data {
		builder.Custom(k, v)
	}

	results := make([]push.Result, 0, len(tokens))
	for _, deviceToken := range tokens {
		results = append(results, c.pushOne(ctx, deviceToken, builder))
	}
	return results
}

func (c *Client) pushOne(ctx context.Context, deviceToken string, p *payload.Payload) push.Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       c.topic,
		Payload:     p,
	}

	res, err := c.client.PushWithContext(ctx, n)
	if err != nil {
		return push.Result{
			Token:  deviceToken,
			Status: push.StatusRetry,
			Reason: fmt.Sprintf("apns transport failed: %v", err),
		}
	}

	if res.Sent() {
		return push.Result{Token: deviceToken, Status: push.StatusDelivered}
	}

	switch res.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		return push.Result{Token: deviceToken, Status: push.StatusInvalid, Reason: res.Reason}
	case apns2.ReasonTooManyRequests, apns2.ReasonInternalServerError,
		apns2.ReasonServiceUnavailable, apns2.ReasonShutdown, apns2.ReasonExpiredProviderToken:
		return push.Result{Token: deviceToken, Status: push.StatusRetry, Reason: res.Reason}
	default:
		// Rejections like TopicDisallowed point at our configuration,
		// not at the token. Keep the token and let the retry surface it.
		c.logger.Warn().Str("reason", res.Reason).Int("status", res.StatusCode).Msg("push rejected")
		return push.Result{Token: deviceToken, Status: push.StatusRetry, Reason: res.Reason}
	}
}
