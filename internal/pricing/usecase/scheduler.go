package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	cronrunner "github.com/dev-tonde/eventory-connect-explore-sub002/internal/cron"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/log"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/metrics"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
)

// DefaultRefreshInterval is the periodic re-evaluation cadence
const DefaultRefreshInterval = 30 * time.Second

// Refresher evaluates and publishes an item's price
type Refresher interface {
	RefreshBy(ctx context.Context, itemID string, trigger Trigger) (domain.PriceSnapshot, bool, error)
}

// Handle identifies one watch started by Scheduler.Start
type Handle struct {
	ID     uint64 `json:"id"`
	ItemID string `json:"item_id"`
}

type watch struct {
	handle Handle
	entry  cron.EntryID
	ctx    context.Context
	cancel context.CancelFunc
}

// Scheduler owns the periodic re-evaluation of watched items. Every watch
// has its own cron entry and context; stopping a watch removes the entry and
// cancels the context, so a stopped watch never refreshes again.
type Scheduler struct {
	refresher Refresher
	runner    *cronrunner.Runner
	interval  time.Duration
	baseCtx   context.Context

	mu      sync.Mutex
	nextID  uint64
	watches map[uint64]*watch
}

// NewScheduler creates a scheduler on runner. baseCtx bounds every watch.
func NewScheduler(baseCtx context.Context, refresher Refresher, runner *cronrunner.Runner, interval time.Duration) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Scheduler{
		refresher: refresher,
		runner:    runner,
		interval:  interval,
		baseCtx:   baseCtx,
		nextID:    1,
		watches:   make(map[uint64]*watch),
	}
}

// Start evaluates the item immediately and then on every interval until the
// returned handle is stopped. An item that does not exist is not watched.
// Other fetch failures are logged and left to the next tick.
func (s *Scheduler) Start(ctx context.Context, itemID string) (Handle, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return Handle{}, domain.NewInvalidInputError("item id is required", "")
	}

	if _, _, err := s.refresher.RefreshBy(ctx, itemID, TriggerStart); err != nil {
		if IsUnknownItem(err) {
			return Handle{}, domain.NewNotFoundError("item", itemID)
		}
		if !IsFetchFailure(err) {
			return Handle{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wctx, cancel := context.WithCancel(s.baseCtx)
	w := &watch{
		handle: Handle{ID: s.nextID, ItemID: itemID},
		ctx:    log.WithItemID(wctx, itemID),
		cancel: cancel,
	}

	entry, err := s.runner.Every(s.interval, func(context.Context) {
		s.tick(w)
	})
	if err != nil {
		cancel()
		return Handle{}, domain.NewInternalError("failed to schedule refresh: " + err.Error())
	}
	w.entry = entry
	s.nextID++
	s.watches[w.handle.ID] = w
	s.reportWatched()

	log.Info(w.ctx, "Watching item",
		zap.Uint64("handle", w.handle.ID),
		zap.Duration("interval", s.interval))
	return w.handle, nil
}

func (s *Scheduler) tick(w *watch) {
	if w.ctx.Err() != nil {
		return
	}
	if _, _, err := s.refresher.RefreshBy(w.ctx, w.handle.ItemID, TriggerTimer); err != nil {
		log.Debug(w.ctx, "Scheduled refresh failed", zap.Error(err))
	}
}

// Stop ends a watch. It reports whether the handle was live.
func (s *Scheduler) Stop(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(h.ID)
}

func (s *Scheduler) stopLocked(id uint64) bool {
	w, ok := s.watches[id]
	if !ok {
		return false
	}
	s.runner.Remove(w.entry)
	w.cancel()
	delete(s.watches, id)
	s.reportWatched()

	log.Info(w.ctx, "Stopped watching item", zap.Uint64("handle", id))
	return true
}

// StopItem ends every watch of the item and returns how many were live
func (s *Scheduler) StopItem(itemID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, w := range s.watches {
		if w.handle.ItemID == itemID && s.stopLocked(id) {
			n++
		}
	}
	return n
}

// StopAll ends every watch
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.watches {
		s.stopLocked(id)
	}
}

// Trigger re-evaluates a watched item outside the timer cadence. Items
// nobody watches are ignored.
func (s *Scheduler) Trigger(ctx context.Context, itemID string) error {
	if !s.IsWatched(itemID) {
		return nil
	}
	_, _, err := s.refresher.RefreshBy(ctx, itemID, TriggerNotify)
	return err
}

// IsWatched reports whether the item has a live watch
func (s *Scheduler) IsWatched(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watches {
		if w.handle.ItemID == itemID {
			return true
		}
	}
	return false
}

// Watched returns the ids of watched items, sorted
func (s *Scheduler) Watched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchedLocked()
}

func (s *Scheduler) watchedLocked() []string {
	seen := make(map[string]struct{}, len(s.watches))
	for _, w := range s.watches {
		seen[w.handle.ItemID] = struct{}{}
	}
	items := make([]string, 0, len(seen))
	for id := range seen {
		items = append(items, id)
	}
	sort.Strings(items)
	return items
}

func (s *Scheduler) reportWatched() {
	metrics.SetWatchedItems(len(s.watchedLocked()))
}
