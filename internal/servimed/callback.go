package servimed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/redact"
)

// CallbackDispatcher posts JSON payloads to caller-supplied URLs.
type CallbackDispatcher struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewCallbackDispatcher creates a CallbackDispatcher.
func NewCallbackDispatcher(timeout time.Duration, client *http.Client, logger *slog.Logger) *CallbackDispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackDispatcher{
		client:  client,
		timeout: timeout,
		logger:  logger.With("component", "callback_dispatcher"),
	}
}

// Deliver posts payload to callbackURL. Delivery is best-effort: the outcome
// is always returned and never an error. 200, 201 and 202 count as success;
// any other status is a warning; a transport failure is an error. When cred
// is not nil it is sent as the Authorization header.
func (d *CallbackDispatcher) Deliver(
	ctx context.Context,
	callbackURL string,
	payload any,
	cred *domain.BearerCredential,
) *domain.CallbackOutcome {
	ctx, cancel := callTimeout(ctx, d.timeout)
	defer cancel()

	req, err := newJSONRequest(ctx, http.MethodPost, callbackURL, payload)
	if err != nil {
		return d.failed(ctx, callbackURL, err)
	}
	if cred != nil {
		req.Header.Set("Authorization", cred.AuthorizationHeader())
	}

	resp, err := send(d.client, req)
	if err != nil {
		return d.failed(ctx, callbackURL, err)
	}

	outcome := &domain.CallbackOutcome{
		StatusCode: resp.StatusCode,
		Response:   responseJSON(resp.Body),
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		outcome.Status = domain.CallbackStatusSuccess
		d.logger.InfoContext(ctx, "callback delivered", "status_code", resp.StatusCode)
	default:
		outcome.Status = domain.CallbackStatusWarning
		outcome.Error = fmt.Sprintf("%s: unexpected status %d", domain.ErrDelivery, resp.StatusCode)
		d.logger.WarnContext(ctx, "callback rejected",
			"callback_url", redact.String(callbackURL),
			"status_code", resp.StatusCode)
	}

	return outcome
}

func (d *CallbackDispatcher) failed(ctx context.Context, callbackURL string, err error) *domain.CallbackOutcome {
	msg := redact.Error(fmt.Errorf("%w: %w", domain.ErrDelivery, err))
	d.logger.WarnContext(ctx, "callback delivery failed",
		"callback_url", redact.String(callbackURL),
		"error", msg)
	return &domain.CallbackOutcome{
		Status: domain.CallbackStatusError,
		Error:  msg,
	}
}

// responseJSON keeps a JSON body as-is and wraps anything else as a JSON
// string so it can be embedded in a task result.
func responseJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	encoded, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return encoded
}
