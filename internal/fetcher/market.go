package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tpalerts/internal/logging"
	"tpalerts/internal/storage"
	"tpalerts/internal/version"
)

const (
	itemsPath    = "/v2/items"
	listingsPath = "/v2/commerce/listings"

	defaultBaseURL  = "https://api.guildwars2.com"
	defaultCooldown = 20 * time.Minute
	maxBatchSize    = 200
)

// MarketOptions parameterise the trading post client.
type MarketOptions struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	BatchSize         int
	RateLimitCooldown time.Duration
}

// Market fetches item metadata and listings from the trading post API.
type Market struct {
	opts     MarketOptions
	logger   zerolog.Logger
	client   *http.Client
	limiter  *rate.Limiter
	cooldown storage.CooldownStore
	baseURL  string
	now      func() time.Time
}

// NewMarket constructs a market client. Rate-limit cooldowns are written to
// cooldown, which may be nil for one-off lookups.
func NewMarket(opts MarketOptions, cooldown storage.CooldownStore, logger zerolog.Logger) *Market {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.BatchSize <= 0 || opts.BatchSize > maxBatchSize {
		opts.BatchSize = maxBatchSize
	}
	if opts.RateLimitCooldown <= 0 {
		opts.RateLimitCooldown = defaultCooldown
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Market{
		opts:     opts,
		logger:   logging.Component(logger, "market_fetcher"),
		client:   &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		cooldown: cooldown,
		baseURL:  baseURL,
		now:      time.Now,
	}
}

// FetchItemMetadata looks up names and icons for ids.
func (m *Market) FetchItemMetadata(ctx context.Context, ids []int64) (map[int64]ItemMetadata, error) {
	out := make(map[int64]ItemMetadata, len(ids))
	for _, batch := range chunkIDs(ids, m.opts.BatchSize) {
		var payload []itemResponse
		if err := m.get(ctx, itemsPath, batch, &payload); err != nil {
			return nil, err
		}
		for _, it := range payload {
			out[it.ID] = ItemMetadata{ID: it.ID, Name: it.Name, Icon: it.Icon}
		}
	}
	return out, nil
}

// FetchListings returns the best buy and best sell order for each id. Ids the
// API does not know are absent from the result.
func (m *Market) FetchListings(ctx context.Context, ids []int64) (map[int64]Listing, error) {
	out := make(map[int64]Listing, len(ids))
	for _, batch := range chunkIDs(ids, m.opts.BatchSize) {
		var payload []listingResponse
		if err := m.get(ctx, listingsPath, batch, &payload); err != nil {
			return nil, err
		}
		for _, l := range payload {
			out[l.ID] = Listing{
				ID:   l.ID,
				Buy:  bestOrder(l.Buys, func(a, b int64) bool { return a > b }),
				Sell: bestOrder(l.Sells, func(a, b int64) bool { return a < b }),
			}
		}
	}
	return out, nil
}

func (m *Market) get(ctx context.Context, path string, ids []int64, out any) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	endpoint := m.baseURL + path + "?ids=" + joinIDs(ids)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", version.UserAgent())
	}
	if m.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+m.opts.Token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		m.enterCooldown(ctx)
		return ErrRateLimited
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode %s: %w", ErrFetchFailed, path, err)
		}
		m.leaveCooldown(ctx)
		return nil
	case resp.StatusCode == http.StatusNotFound && allIDsInvalid(body):
		m.leaveCooldown(ctx)
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrFetchFailed, parseHTTPError(resp.StatusCode, body))
	}
}

func (m *Market) enterCooldown(ctx context.Context) {
	until := m.now().Add(m.opts.RateLimitCooldown)
	m.logger.Warn().
		Time("retry_at", until).
		Dur("cooldown", m.opts.RateLimitCooldown).
		Msg("rate limit exceeded, pausing api calls")
	if m.cooldown == nil {
		return
	}
	if err := m.cooldown.SetCooldownUntil(ctx, until); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist rate limit cooldown")
	}
}

func (m *Market) leaveCooldown(ctx context.Context) {
	if m.cooldown == nil {
		return
	}
	until, err := m.cooldown.CooldownUntil(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to read cooldown")
		return
	}
	if until.IsZero() {
		return
	}
	if err := m.cooldown.ClearCooldown(ctx); err != nil {
		m.logger.Error().Err(err).Msg("failed to clear cooldown")
		return
	}
	m.logger.Info().Msg("api call succeeded, cooldown cleared")
}

type itemResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type listingResponse struct {
	ID    int64          `json:"id"`
	Buys  []orderEntries `json:"buys"`
	Sells []orderEntries `json:"sells"`
}

type orderEntries struct {
	Listings  int64 `json:"listings"`
	UnitPrice int64 `json:"unit_price"`
	Quantity  int64 `json:"quantity"`
}

type errorResponse struct {
	Text string `json:"text"`
}

func bestOrder(entries []orderEntries, better func(a, b int64) bool) Order {
	if len(entries) == 0 {
		return Order{}
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if better(e.UnitPrice, best.UnitPrice) {
			best = e
		}
	}
	return Order{Price: best.UnitPrice, Quantity: best.Quantity}
}

func allIDsInvalid(body []byte) bool {
	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Text), "ids provided are invalid")
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Text != "" {
		return fmt.Errorf("api error (%d): %s", status, apiErr.Text)
	}
	if len(payload) > 0 {
		return fmt.Errorf("api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("api error (%d)", status)
}

// chunkIDs de-duplicates and sorts ids, then splits them into batches.
func chunkIDs(ids []int64, size int) [][]int64 {
	seen := make(map[int64]struct{}, len(ids))
	uniq := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	var batches [][]int64
	for start := 0; start < len(uniq); start += size {
		end := start + size
		if end > len(uniq) {
			end = len(uniq)
		}
		batches = append(batches, uniq[start:end])
	}
	return batches
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

var (
	_ MetadataFetcher = (*Market)(nil)
	_ ListingFetcher  = (*Market)(nil)
)
