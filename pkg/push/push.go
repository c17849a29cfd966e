package push

import "context"

const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// Payload is the provider-independent content of one push notification.
type Payload struct {
	Title string
	Body  string
	Data  map[string]string
}

// Status is the three-way per-token outcome a provider call can report.
type Status string

const (
	// StatusDelivered means the provider accepted the push for this token.
	StatusDelivered Status = "delivered"
	// StatusInvalid means the provider reported the token permanently dead
	// (app uninstalled, token revoked). The token must not be pushed again.
	StatusInvalid Status = "invalid"
	// StatusRetry means the failure is expected to clear on a later attempt
	// (timeout, rate limit, provider outage). Never invalidates the token.
	StatusRetry Status = "retry"
)

// Result is the outcome for a single device token within one provider call.
type Result struct {
	Token  string
	Status Status
	Reason string
}

// Provider translates a payload into provider requests for one platform and
// interprets the provider's responses. Send returns exactly one Result per
// input token; call-level failures surface as per-token retry results.
// Implement this interface to add new push platforms.
type Provider interface {
	Platform() string
	Send(ctx context.Context, tokens []string, payload Payload) []Result
}

// RetryAll classifies every token in a call as retryable with a shared
// reason, used when the whole call failed (transport error, timeout).
func RetryAll(tokens []string, reason string) []Result {
	results := make([]Result, 0, len(tokens))
	for _, t := range tokens {
		results = append(results, Result{Token: t, Status: StatusRetry, Reason: reason})
	}
	return results
}
