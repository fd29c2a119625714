// Package notify delivers change messages to the operator.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"linkwatch/internal/model"
)

// Messages the orchestrator sends besides change lines.
const (
	MsgFirstReport = "First report was created."
	MsgNoChanges   = "No changes detected."
)

// Notifier delivers a batch of text messages. Delivery is fire-and-forget
// from the orchestrator's point of view: failures are logged, never retried,
// and never block the snapshot save.
type Notifier interface {
	Notify(ctx context.Context, messages []string) error
}

// FormatChanges renders change records into notification lines, preserving
// record order.
func FormatChanges(changes []model.Change) []string {
	messages := make([]string, 0, len(changes))
	for _, change := range changes {
		messages = append(messages, fmt.Sprintf("Change for website: %s. %s.", change.ArticleURL, change.Change))
	}
	return messages
}

// FormatFailure renders the visible failure marker for a page that could not
// be observed.
func FormatFailure(pageURL string, err error) string {
	return fmt.Sprintf("Failed to observe %s: %v", pageURL, err)
}

// Telegram posts messages to a chat via the Bot API.
type Telegram struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

// NewTelegram creates a notifier for the given bot token and chat.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		client:  &http.Client{},
		baseURL: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
	}
}

// Notify sends the batch as one message per Telegram call. Failed sends are
// collected so the caller sees every delivery failure, not just the first.
func (t *Telegram) Notify(ctx context.Context, messages []string) error {
	var errs []error
	for _, message := range messages {
		if err := t.send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Telegram) send(ctx context.Context, message string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	form := url.Values{
		"chat_id": {t.chatID},
		"text":    {message},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send: unexpected status code %d", resp.StatusCode)
	}
	return nil
}
