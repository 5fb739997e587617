package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/metrics"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/retry"
)

// ErrDispatcherClosed is returned when publishing after Close
var ErrDispatcherClosed = errors.New("dispatcher closed")

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	QueueSize int           // Number of changes buffered before dropping
	Timeout   time.Duration // Per-delivery deadline, retries included
	Retry     retry.Config
}

// DefaultDispatcherConfig returns a default dispatcher configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize: 256,
		Timeout:   10 * time.Second,
		Retry:     retry.DefaultConfig(),
	}
}

// Dispatcher decouples price refreshes from a slow downstream sink. Changes
// are queued and delivered in order by a single worker with retries.
type Dispatcher struct {
	next   PriceChangePublisher
	logger *zap.Logger
	cfg    DispatcherConfig

	queue chan domain.PriceChange
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

var _ PriceChangePublisher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher in front of next and starts its worker
func NewDispatcher(next PriceChangePublisher, logger *zap.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultDispatcherConfig().QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDispatcherConfig().Timeout
	}

	d := &Dispatcher{
		next:   next,
		logger: logger,
		cfg:    cfg,
		queue:  make(chan domain.PriceChange, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// PublishPriceChanged enqueues the change; it never blocks on the sink.
// A full queue drops the change.
func (d *Dispatcher) PublishPriceChanged(ctx context.Context, change domain.PriceChange) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- change:
		return nil
	default:
		metrics.RecordEventPublished("dispatcher", errors.New("queue full"))
		d.logger.Warn("Dispatch queue full, dropping price change",
			zap.String("item_id", change.ItemID),
			zap.Int("queue_size", d.cfg.QueueSize))
		return nil
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for change := range d.queue {
		d.deliver(change)
	}
}

func (d *Dispatcher) deliver(change domain.PriceChange) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	err := retry.Do(ctx, d.cfg.Retry, d.logger, "publish_price_change", func(ctx context.Context) error {
		return d.next.PublishPriceChanged(ctx, change)
	})
	if err != nil {
		metrics.RecordError("publish_failed", "dispatcher")
		d.logger.Error("Failed to deliver price change",
			zap.String("item_id", change.ItemID),
			zap.Error(err))
	}
}

// Close stops accepting changes, delivers what is queued and closes the sink
func (d *Dispatcher) Close() error {
	var err error
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		<-d.done
		err = d.next.Close()
	})
	return err
}
