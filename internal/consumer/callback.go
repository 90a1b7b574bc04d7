package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"scribe/internal/logging"
)

// CallbackSender posts result payloads to the task's callback URL. Delivery
// is best effort with a single attempt: the task itself already reached a
// terminal state, and a flaky callback endpoint must not push it back into
// the retry loop.
type CallbackSender struct {
	client *http.Client
	logger *slog.Logger
}

// NewCallbackSender builds a sender with the given per-request timeout.
func NewCallbackSender(timeout time.Duration, logger *slog.Logger) *CallbackSender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CallbackSender{
		client: &http.Client{Timeout: timeout},
		logger: logging.NewComponentLogger(logger, "callback"),
	}
}

// Send posts the payload as JSON. Failures are logged, never returned.
func (s *CallbackSender) Send(ctx context.Context, url string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode callback payload", logging.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("build callback request", logging.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("callback delivery failed",
			logging.String("url", url),
			logging.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		s.logger.Error("callback rejected",
			logging.String("url", url),
			logging.Int("status", resp.StatusCode))
		return
	}
	s.logger.Info("callback sent",
		logging.String("url", url),
		logging.Int("status", resp.StatusCode))
}
