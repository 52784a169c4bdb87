package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tpalerts/internal/alerting"
	"tpalerts/internal/display"
	"tpalerts/internal/fetcher"
	"tpalerts/internal/logging"
	"tpalerts/internal/scheduler"
	"tpalerts/internal/storage"
)

// ErrAlreadyRunning indicates another poller holds the advisory lock.
var ErrAlreadyRunning = errors.New("service: another poller is already running")

// State names a phase of the poll loop.
type State string

const (
	StateIdleWait      State = "idle_wait"
	StateCheckCooldown State = "check_cooldown"
	StateCooldownWait  State = "cooldown_wait"
	StateFetching      State = "fetching"
	StateEvaluating    State = "evaluating"
	StatePersisting    State = "persisting"
	StateNotifying     State = "notifying"
)

// Outcome describes one pass through the loop. State is the last phase the
// pass reached and Wait is how long the loop sleeps before the next pass.
type Outcome struct {
	CycleID string
	State   State
	Wait    time.Duration
	Events  []alerting.Event
	Err     error
}

// AlertRecorder persists events to the local alert log.
type AlertRecorder interface {
	Append(events []alerting.Event) error
}

// Options tune the poll loop.
type Options struct {
	Interval  time.Duration
	EmptyWait time.Duration
	LockKey   int64
}

// Service orchestrates fetching, evaluation, persistence, and alerting.
type Service struct {
	opts      Options
	scheduler *scheduler.Scheduler
	store     storage.Store
	listings  fetcher.ListingFetcher
	notifier  alerting.Notifier
	alertLog  AlertRecorder
	out       io.Writer
	logger    zerolog.Logger
	locker    storage.AdvisoryLocker
	now       func() time.Time
}

// New constructs the poll loop. notifier, alertLog and out are optional.
func New(opts Options, sched *scheduler.Scheduler, store storage.Store, listings fetcher.ListingFetcher, notifier alerting.Notifier, alertLog AlertRecorder, out io.Writer, logger zerolog.Logger) *Service {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.EmptyWait <= 0 {
		opts.EmptyWait = 10 * time.Second
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		opts:      opts,
		scheduler: sched,
		store:     store,
		listings:  listings,
		notifier:  notifier,
		alertLog:  alertLog,
		out:       out,
		logger:    logging.Component(logger, "service"),
		locker:    locker,
		now:       time.Now,
	}
}

// Run holds the advisory lock, when the store offers one, and drives Step
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		return ErrAlreadyRunning
	}
	if unlock != nil {
		defer unlock()
	}

	s.logger.Info().Dur("interval", s.opts.Interval).Msg("monitoring started")
	return s.scheduler.Run(ctx, func(ctx context.Context) time.Duration {
		return s.Step(ctx).Wait
	})
}

// RunOnce performs a single pass under the same advisory lock as Run.
func (s *Service) RunOnce(ctx context.Context) (Outcome, error) {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if !proceed {
		return Outcome{}, ErrAlreadyRunning
	}
	if unlock != nil {
		defer unlock()
	}
	return s.Step(ctx), nil
}

// Step performs one pass: check the cooldown, fetch, evaluate, persist and
// notify. Failures are logged and reported in the outcome, never raised.
//
// Store and market calls ignore cancellation of ctx so a started cycle keeps
// its writes consistent. The notifier sees ctx and abandons a retry wait
// when it is cancelled.
func (s *Service) Step(ctx context.Context) Outcome {
	out := Outcome{CycleID: uuid.NewString(), State: StateCheckCooldown, Wait: s.opts.Interval}
	logger := s.logger.With().Str("cycle_id", out.CycleID).Logger()
	now := s.now()
	work := context.WithoutCancel(ctx)

	until, err := s.store.CooldownUntil(work)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read cooldown")
		out.Err = err
		return out
	}
	if !until.IsZero() && now.Before(until) {
		remaining := until.Sub(now)
		out.State = StateCooldownWait
		out.Wait = min(remaining, s.opts.Interval)
		logger.Warn().
			Time("limit_until", until).
			Str("remaining", fmt.Sprintf("%dm %ds", int(remaining.Minutes()), int(remaining.Seconds())%60)).
			Msg("waiting due to rate limit")
		return out
	}

	out.State = StateFetching
	items, err := s.store.Items(work)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load items")
		out.Err = err
		return out
	}
	if len(items) == 0 {
		logger.Info().Msg("no items in database, add items first")
		out.Wait = s.opts.EmptyWait
		return out
	}

	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	listings, err := s.listings.FetchListings(work, ids)
	if err != nil {
		out.Err = err
		if errors.Is(err, fetcher.ErrRateLimited) {
			logger.Warn().Msg("rate limited while fetching prices")
		} else {
			logger.Error().Err(err).Msg("error fetching prices")
		}
		return out
	}

	out.State = StateEvaluating
	for _, id := range ids {
		if _, ok := listings[id]; !ok {
			logger.Warn().Int64("item_id", id).Str("name", items[id].Name).Msg("no listing returned, skipping item")
		}
	}
	out.Events = alerting.Evaluate(items, listings)

	out.State = StatePersisting
	s.persist(work, logger, ids, items, listings)

	out.State = StateNotifying
	s.notify(ctx, logger, out.Events)
	if s.out != nil {
		if err := display.RenderStatus(s.out, now, items, listings, len(out.Events)); err != nil {
			logger.Error().Err(err).Msg("failed to render status")
		}
	}
	if err := s.store.MarkRun(work, now); err != nil {
		logger.Error().Err(err).Msg("failed to record last run")
	}

	logger.Info().Int("items", len(listings)).Int("alerts", len(out.Events)).Msg("cycle complete")
	return out
}

func (s *Service) persist(ctx context.Context, logger zerolog.Logger, ids []int64, items map[int64]storage.Item, listings map[int64]fetcher.Listing) {
	for _, id := range ids {
		listing, ok := listings[id]
		if !ok {
			continue
		}
		var lowest *int64
		if sell := listing.Sell.Price; sell > 0 && sell < items[id].LowestSeen {
			lowest = &sell
		}
		found, err := s.store.RecordPrices(ctx, id, listing.Buy.Price, listing.Sell.Price, lowest)
		if err != nil {
			logger.Error().Err(err).Int64("item_id", id).Msg("failed to record prices")
			continue
		}
		if !found {
			logger.Warn().Int64("item_id", id).Msg("item disappeared before prices were recorded")
		}
	}
}

func (s *Service) notify(ctx context.Context, logger zerolog.Logger, events []alerting.Event) {
	if len(events) == 0 {
		return
	}
	if s.alertLog != nil {
		if err := s.alertLog.Append(events); err != nil {
			logger.Error().Err(err).Msg("failed to write alert log")
		}
	}
	if s.notifier != nil {
		if !s.notifier.Notify(ctx, events) {
			logger.Warn().Int("events", len(events)).Msg("alerts were not delivered")
		}
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
