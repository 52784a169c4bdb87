package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tpalerts/internal/config"
	"tpalerts/internal/logging"
	"tpalerts/internal/price"
	"tpalerts/internal/scheduler"
	"tpalerts/internal/version"
)

var (
	// ErrInvalidEndpoint indicates the webhook URL is not a Discord webhook.
	ErrInvalidEndpoint = errors.New("alerting: invalid webhook url")
	// ErrDeliveryFailed indicates the message could not be delivered.
	ErrDeliveryFailed = errors.New("alerting: delivery failed")
)

const (
	defaultRetryDelay = 5 * time.Second
	footerIcon        = "https://wiki.guildwars2.com/images/thumb/d/df/Guild_Wars_2_logo.png/300px-Guild_Wars_2_logo.png"
)

// Notifier delivers a cycle's events. It reports whether a message went out
// and never returns delivery errors to the caller.
type Notifier interface {
	Notify(ctx context.Context, events []Event) bool
}

// DiscordOptions tune the webhook client.
type DiscordOptions struct {
	WebhookURL   string
	Username     string
	Timeout      time.Duration
	MaxRetries   int
	MaxRetryWait time.Duration
}

// DiscordNotifier posts embeds to a Discord webhook.
type DiscordNotifier struct {
	opts   DiscordOptions
	client *http.Client
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// NewDiscordNotifier validates the webhook URL and builds the notifier.
func NewDiscordNotifier(opts DiscordOptions, logger zerolog.Logger) (*DiscordNotifier, error) {
	if !strings.HasPrefix(opts.WebhookURL, config.WebhookPrefix) {
		return nil, fmt.Errorf("%w: must start with %s", ErrInvalidEndpoint, config.WebhookPrefix)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetryWait <= 0 {
		opts.MaxRetryWait = time.Minute
	}
	if opts.Username == "" {
		opts.Username = "GW2 TP Bot"
	}

	return &DiscordNotifier{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logging.Component(logger, "alert_discord"),
		sleep:  scheduler.Sleep,
		now:    time.Now,
	}, nil
}

// Notify sends events and logs any failure. It returns false for an empty
// batch or a failed delivery.
func (n *DiscordNotifier) Notify(ctx context.Context, events []Event) bool {
	if len(events) == 0 {
		return false
	}
	if err := n.Send(ctx, events); err != nil {
		n.logger.Error().Err(err).Int("events", len(events)).Msg("failed to deliver discord alert")
		return false
	}
	return true
}

// Send posts one message carrying up to two embeds. A 429 answer is retried
// after the advertised delay, at most MaxRetries times. Cancelling ctx cuts a
// retry wait short; a request already on the wire is allowed to finish.
func (n *DiscordNotifier) Send(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	body, err := json.Marshal(n.buildPayload(events))
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %w", ErrDeliveryFailed, err)
	}

	for attempt := 0; ; attempt++ {
		retry, wait, err := n.post(context.WithoutCancel(ctx), body)
		if !retry {
			return err
		}
		if attempt >= n.opts.MaxRetries {
			return fmt.Errorf("%w: rate limited after %d retries", ErrDeliveryFailed, attempt)
		}
		if wait > n.opts.MaxRetryWait {
			wait = n.opts.MaxRetryWait
		}
		n.logger.Warn().Dur("retry_in", wait).Int("attempt", attempt+1).Msg("discord rate limit reached")
		if err := n.sleep(ctx, wait); err != nil {
			return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		}
	}
}

func (n *DiscordNotifier) post(ctx context.Context, body []byte) (bool, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opts.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return false, 0, fmt.Errorf("%w: create request: %w", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := n.client.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, retryDelay(resp.Header, payload), nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, 0, fmt.Errorf("%w: discord status %d: %s", ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if resp.StatusCode != http.StatusNoContent {
		n.logger.Warn().Int("status", resp.StatusCode).Msg("unexpected discord response")
	}
	n.logger.Info().Msg("alert delivered (Discord)")
	return false, 0, nil
}

type webhookPayload struct {
	Username string  `json:"username"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Color       int         `json:"color"`
	Thumbnail   *embedImage `json:"thumbnail,omitempty"`
	Footer      embedFooter `json:"footer"`
	Timestamp   string      `json:"timestamp"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url"`
}

func (n *DiscordNotifier) buildPayload(events []Event) webhookPayload {
	sell, buy := Split(events)
	stamp := n.now().UTC().Format("2006-01-02T15:04:05Z")

	payload := webhookPayload{Username: n.opts.Username}
	if len(sell) > 0 {
		payload.Embeds = append(payload.Embeds, buildEmbed(sell, 0x00ff00, "GW2 TP Alert - Buy price above threshold", stamp))
	}
	if len(buy) > 0 {
		payload.Embeds = append(payload.Embeds, buildEmbed(buy, 0xff9900, "GW2 TP Alert - Sell price below threshold", stamp))
	}
	return payload
}

func buildEmbed(events []Event, color int, footer, stamp string) embed {
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("• %s - %s (Available: %d)", ev.Name, price.Format(ev.Price), ev.Quantity))
	}
	e := embed{
		Title:       events[0].Direction.Title(),
		Description: strings.Join(lines, "\n"),
		Color:       color,
		Footer:      embedFooter{Text: footer, IconURL: footerIcon},
		Timestamp:   stamp,
	}
	if events[0].Icon != "" {
		e.Thumbnail = &embedImage{URL: events[0].Icon}
	}
	return e
}

// retryDelay prefers the Retry-After header, then the JSON retry_after field.
func retryDelay(h http.Header, body []byte) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	var payload struct {
		RetryAfter *float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter != nil && *payload.RetryAfter >= 0 {
		return time.Duration(*payload.RetryAfter * float64(time.Second))
	}
	return defaultRetryDelay
}

var _ Notifier = (*DiscordNotifier)(nil)
