package fcm

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"bandscan-backend/pkg/push"
)

// MessagingClient is the subset of the Firebase Messaging API the adapter
// uses. *messaging.Client satisfies it; tests substitute a mock.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client sends multicast pushes to Android devices through Firebase Cloud
// Messaging and maps each response onto a per-token outcome.
type Client struct {
	messaging MessagingClient
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewMessagingClient initializes the Firebase app and returns its concrete
// messaging client using the provided credentials file.
func NewMessagingClient(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return messagingClient, nil
}

// New wraps a messaging client as a push.Provider.
func New(client MessagingClient, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		messaging: client,
		timeout:   timeout,
		logger:    logger.With().Str("component", "fcm").Logger(),
	}
}

func (c *Client) Platform() string {
	return push.PlatformAndroid
}

// Send pushes one payload to a batch of tokens via SendEachForMulticast.
// The caller is responsible for keeping batches under the FCM limit.
func (c *Client) Send(ctx context.Context, tokens []string, payload push.Payload) []push.Result {
	if len(tokens) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   payload.Data,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
	}

	br, err := c.messaging.SendEachForMulticast(ctx, msg)
	if err != nil {
		// Whole-batch failure: transport, auth, timeout. The tokens
		// themselves are not implicated, so none of them is invalidated.
		c.logger.Error().Err(err).Int("tokens", len(tokens)).Msg("multicast failed")
		return push.RetryAll(tokens, fmt.Sprintf("fcm transport failed: %v", err))
	}

	c.logger.Debug().
		Int("success", br.SuccessCount).
		Int("failure", br.FailureCount).
		Msg("multicast sent")

	results := make([]push.Result, 0, len(tokens))
	for i, resp := range br.Responses {
		switch {
		case resp.Success:
			results = append(results, push.Result{Token: tokens[i], Status: push.StatusDelivered})
		case isTokenInvalid(resp.Error):
			results = append(results, push.Result{
				Token:  tokens[i],
				Status: push.StatusInvalid,
				Reason: resp.Error.Error(),
			})
		default:
			results = append(results, push.Result{
				Token:  tokens[i],
				Status: push.StatusRetry,
				Reason: resp.Error.Error(),
			})
		}
	}
	return results
}

// isTokenInvalid reports whether a per-token FCM error means the token is
// permanently dead rather than temporarily unreachable.
func isTokenInvalid(err error) bool {
	return messaging.IsRegistrationTokenNotRegistered(err) ||
		messaging.IsInvalidArgument(err) ||
		messaging.IsSenderIDMismatch(err)
}
