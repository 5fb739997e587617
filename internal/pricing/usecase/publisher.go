package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/events"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/log"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/metrics"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/tracing"
)

// Trigger names what caused a refresh
type Trigger string

const (
	TriggerStart  Trigger = "start"
	TriggerTimer  Trigger = "timer"
	TriggerNotify Trigger = "notify"
	TriggerManual Trigger = "manual"
)

// HistoryMirror stores a copy of published snapshots outside the process
type HistoryMirror interface {
	Append(ctx context.Context, itemID string, s domain.PriceSnapshot) error
	Load(ctx context.Context, itemID string) ([]domain.PriceSnapshot, error)
}

// Subscriber receives every published price change of an item
type Subscriber func(domain.PriceChange)

// Quote is the current price of an item with the rules behind it
type Quote struct {
	ItemID         string                `json:"item_id"`
	Currency       string                `json:"currency,omitempty"`
	Price          decimal.Decimal       `json:"price"`
	BasePrice      decimal.Decimal       `json:"base_price"`
	Reason         string                `json:"reason"`
	Conditions     []string              `json:"conditions"`
	Applied        []pricing.AppliedRule `json:"applied_rules"`
	Occupancy      float64               `json:"occupancy"`
	DaysUntilEvent float64               `json:"days_until_event"`
	EvaluatedAt    time.Time             `json:"evaluated_at"`
}

// PublisherConfig holds publisher configuration
type PublisherConfig struct {
	HistorySize    int
	RefreshTimeout time.Duration
}

// DefaultPublisherConfig returns a default publisher configuration
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		HistorySize:    domain.DefaultHistorySize,
		RefreshTimeout: 5 * time.Second,
	}
}

// Feed is the published state of one item. Its mutex is held for a whole
// refresh, so racing refreshes of the same item run one after another.
type Feed struct {
	mu      sync.Mutex
	itemID  string
	current *Quote
	history *domain.History
	subs    map[uint64]Subscriber
	nextSub uint64
	// seeded is set once mirrored history was loaded into history
	seeded bool
}

// PricePublisher re-evaluates item prices and publishes changes to
// subscribers, the configured sink and the history.
type PricePublisher struct {
	rules  repo.RuleRepository
	sales  repo.SalesStateRepository
	calc   *pricing.Calculator
	sink   events.PriceChangePublisher
	mirror HistoryMirror
	cfg    PublisherConfig
	now    func() time.Time

	mu    sync.Mutex
	feeds map[string]*Feed
}

// PublisherOption configures optional collaborators
type PublisherOption func(*PricePublisher)

// WithSink publishes every change to sink
func WithSink(sink events.PriceChangePublisher) PublisherOption {
	return func(p *PricePublisher) { p.sink = sink }
}

// WithHistoryMirror mirrors history to m and seeds new feeds from it
func WithHistoryMirror(m HistoryMirror) PublisherOption {
	return func(p *PricePublisher) { p.mirror = m }
}

// WithClock overrides the evaluation clock
func WithClock(now func() time.Time) PublisherOption {
	return func(p *PricePublisher) { p.now = now }
}

// NewPricePublisher creates a new price publisher
func NewPricePublisher(
	rules repo.RuleRepository,
	sales repo.SalesStateRepository,
	calc *pricing.Calculator,
	cfg PublisherConfig,
	opts ...PublisherOption,
) *PricePublisher {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = domain.DefaultHistorySize
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultPublisherConfig().RefreshTimeout
	}

	p := &PricePublisher{
		rules: rules,
		sales: sales,
		calc:  calc,
		sink:  events.NoopPublisher{},
		cfg:   cfg,
		now:   time.Now,
		feeds: make(map[string]*Feed),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Refresh evaluates the item's price now. It reports the most recent
// snapshot and whether this call published it.
func (p *PricePublisher) Refresh(ctx context.Context, itemID string) (domain.PriceSnapshot, bool, error) {
	return p.RefreshBy(ctx, itemID, TriggerManual)
}

// RefreshBy is Refresh with the cause recorded in metrics and logs.
//
// When the rules or the sales state cannot be read, the last published
// price stays in place and a RULE_FETCH_FAILED error is returned.
func (p *PricePublisher) RefreshBy(ctx context.Context, itemID string, trigger Trigger) (domain.PriceSnapshot, bool, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.PriceSnapshot{}, false, domain.NewInvalidInputError("item id is required", "")
	}

	start := time.Now()
	ctx = log.WithItemID(ctx, itemID)
	ctx, span := tracing.StartRefreshSpan(ctx, itemID, string(trigger))

	f := p.feed(itemID)
	snap, published, err := p.refresh(ctx, f, trigger)
	if IsUnknownItem(err) {
		p.release(f)
	}

	price := ""
	if err == nil {
		price = snap.Price.String()
	}
	tracing.EndRefreshSpan(span, price, published, err)
	outcome := "unchanged"
	switch {
	case IsUnknownItem(err):
		outcome = "unknown_item"
	case err != nil:
		outcome = "fetch_failed"
	case published:
		outcome = "published"
	}
	metrics.RecordEvaluation(string(trigger), outcome, time.Since(start))
	return snap, published, err
}

func (p *PricePublisher) refresh(ctx context.Context, f *Feed, trigger Trigger) (domain.PriceSnapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.RefreshTimeout)
	defer cancel()

	var state domain.SalesState
	rules, err := p.rules.ListActiveRules(fetchCtx, f.itemID)
	if err == nil {
		state, err = p.sales.GetSalesState(fetchCtx, f.itemID)
	}
	if err != nil {
		// an item that does not exist has no mirrored history worth loading
		if !IsUnknownItem(err) {
			p.seed(ctx, f)
		}
		last, _ := f.history.Last()
		return last, false, p.fetchFailed(ctx, f.itemID, trigger, err)
	}

	p.seed(ctx, f)
	last, _ := f.history.Last()

	now := p.now()
	result := p.calc.Evaluate(pricing.InputsFromState(state, rules, now))
	p.reportSkipped(ctx, f.itemID, result.Skipped)

	f.current = &Quote{
		ItemID:         f.itemID,
		Currency:       state.Currency,
		Price:          result.Price,
		BasePrice:      state.BasePrice,
		Reason:         result.Reason,
		Conditions:     result.Conditions,
		Applied:        result.Applied,
		Occupancy:      result.Occupancy,
		DaysUntilEvent: result.DaysUntilEvent,
		EvaluatedAt:    now,
	}

	snap := domain.PriceSnapshot{Price: result.Price, Timestamp: now, Reason: result.Reason}
	if !f.history.Append(snap) {
		log.Debug(ctx, "Price unchanged",
			zap.String("trigger", string(trigger)),
			zap.String("price", result.Price.String()))
		return last, false, nil
	}

	change := domain.PriceChange{
		ItemID:        f.itemID,
		Currency:      state.Currency,
		PreviousPrice: last.Price,
		Snapshot:      snap,
		Conditions:    result.Conditions,
	}
	p.publish(ctx, f, change)

	log.Info(ctx, "Price published",
		zap.String("trigger", string(trigger)),
		zap.String("previous_price", last.Price.String()),
		zap.String("price", snap.Price.String()),
		zap.String("reason", snap.Reason))
	return snap, true, nil
}

// publish fans a change out while the feed is locked, so subscribers see
// changes of one item in order. Subscribers must not refresh the same item.
func (p *PricePublisher) publish(ctx context.Context, f *Feed, change domain.PriceChange) {
	price, _ := change.Snapshot.Price.Float64()
	metrics.RecordPublication(f.itemID, price)

	for _, fn := range f.subs {
		fn(change)
	}

	if err := p.sink.PublishPriceChanged(ctx, change); err != nil {
		metrics.RecordError("publish_failed", "publisher")
		log.Warn(ctx, "Failed to publish price change", zap.Error(err))
	}

	if p.mirror != nil {
		if err := p.mirror.Append(ctx, f.itemID, change.Snapshot); err != nil {
			log.Warn(ctx, "Failed to mirror price history", zap.Error(err))
		}
	}
}

func (p *PricePublisher) fetchFailed(ctx context.Context, itemID string, trigger Trigger, cause error) error {
	if IsUnknownItem(cause) {
		log.Debug(ctx, "Item not found, nothing to price", zap.String("trigger", string(trigger)))
		return domain.NewRuleFetchError(itemID, cause)
	}
	metrics.RecordRuleFetchFailure()
	log.Warn(ctx, "Keeping last known price, pricing inputs unavailable",
		zap.String("trigger", string(trigger)),
		zap.Error(cause))
	return domain.NewRuleFetchError(itemID, cause)
}

func (p *PricePublisher) reportSkipped(ctx context.Context, itemID string, skipped []pricing.RuleIssue) {
	metrics.RecordInvalidRules(itemID, len(skipped))
	for _, issue := range skipped {
		log.Warn(ctx, "Skipping invalid pricing rule",
			zap.String("rule_id", issue.RuleID),
			zap.Error(issue.Err))
	}
}

// feed returns the item's feed, creating it on first use
func (p *PricePublisher) feed(itemID string) *Feed {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.feeds[itemID]; ok {
		return f
	}

	f := &Feed{
		itemID:  itemID,
		history: domain.NewHistory(p.cfg.HistorySize),
		subs:    make(map[uint64]Subscriber),
		seeded:  p.mirror == nil,
	}
	p.feeds[itemID] = f
	return f
}

// release drops a feed that holds nothing: never evaluated, no history and
// no subscribers. Lock order is p.mu, then f.mu.
func (p *PricePublisher) release(f *Feed) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.feeds[f.itemID] != f {
		return
	}
	f.mu.Lock()
	idle := f.current == nil && f.history.Len() == 0 && len(f.subs) == 0
	f.mu.Unlock()
	if idle {
		delete(p.feeds, f.itemID)
	}
}

// seed loads mirrored history into f once. The caller holds f.mu.
func (p *PricePublisher) seed(ctx context.Context, f *Feed) {
	if f.seeded {
		return
	}
	snaps, err := p.mirror.Load(ctx, f.itemID)
	if err != nil {
		log.Warn(ctx, "Failed to load mirrored price history", zap.Error(err))
		return
	}
	for _, s := range snaps {
		f.history.Append(s)
	}
	f.seeded = true
}

func (p *PricePublisher) lookup(itemID string) (*Feed, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.feeds[itemID]
	return f, ok
}

// Subscribe registers fn for the item's price changes. The returned func
// removes the subscription and is safe to call more than once.
func (p *PricePublisher) Subscribe(itemID string, fn Subscriber) func() {
	f := p.feed(itemID)

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		p.release(f)
	}
}

// Current returns the most recent evaluation of the item
func (p *PricePublisher) Current(itemID string) (Quote, bool) {
	f, ok := p.lookup(itemID)
	if !ok {
		return Quote{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return Quote{}, false
	}
	return *f.current, true
}

// History returns the item's published snapshots, oldest first
func (p *PricePublisher) History(itemID string) []domain.PriceSnapshot {
	f, ok := p.lookup(itemID)
	if !ok {
		return []domain.PriceSnapshot{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history.Entries()
}

// IsFetchFailure reports whether err came from unavailable pricing inputs
func IsFetchFailure(err error) bool {
	return domain.HasCode(err, domain.ErrCodeRuleFetchFailed)
}

// IsUnknownItem reports whether err means the item does not exist
func IsUnknownItem(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
