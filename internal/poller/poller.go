package poller

import (
	"context"
	"sync"
	"time"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/abhijeets54/ankkorwoo-sub001/pkg/logger"
)

// ProductKey identifies one variant of interest.
type ProductKey struct {
	ProductID   string
	VariationID string
}

// Correction is a display-state update for one variant. Corrections never
// mutate cart lines; when available stock drops below a held quantity the
// consumer surfaces a warning and the user decides.
type Correction struct {
	ProductID   string
	VariationID string
	Available   int
	Status      domain.StockStatus
}

// AvailabilityChecker is the slice of the reservation authority the
// poller needs.
type AvailabilityChecker interface {
	CheckAvailable(ctx context.Context, productID, variationID string) (int, error)
}

// Poller periodically re-checks availability for the current interest set
// and emits corrections. There is no push channel from the platform, so
// this cooperative loop is the freshness mechanism. Each cycle runs under
// its own cancellable context; changing the interest set cancels the
// in-flight cycle so stale responses never apply.
type Poller struct {
	checker  AvailabilityChecker
	interval time.Duration
	log      *logger.Logger

	mu          sync.Mutex
	interest    map[ProductKey]struct{}
	cancelCycle context.CancelFunc

	wake        chan struct{}
	corrections chan Correction
}

func NewPoller(checker AvailabilityChecker, interval time.Duration, log *logger.Logger) *Poller {
	return &Poller{
		checker:     checker,
		interval:    interval,
		log:         log,
		interest:    make(map[ProductKey]struct{}),
		wake:        make(chan struct{}, 1),
		corrections: make(chan Correction, 64),
	}
}

// Corrections is the stream of availability updates. The channel is
// closed when Run returns, so range loops over it terminate with the
// poller.
func (p *Poller) Corrections() <-chan Correction {
	return p.corrections
}

// SetInterest replaces the interest set. The in-flight cycle, if any, is
// cancelled; a newly non-empty set wakes the loop immediately.
func (p *Poller) SetInterest(keys []ProductKey) {
	p.mu.Lock()
	wasEmpty := len(p.interest) == 0
	p.interest = make(map[ProductKey]struct{}, len(keys))
	for _, k := range keys {
		p.interest[k] = struct{}{}
	}
	if p.cancelCycle != nil {
		p.cancelCycle()
		p.cancelCycle = nil
	}
	nowNonEmpty := len(p.interest) > 0
	p.mu.Unlock()

	if wasEmpty && nowNonEmpty {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// Run polls until ctx is done. While the interest set is empty the loop
// ticks without issuing requests.
func (p *Poller) Run(ctx context.Context) {
	// poll only ever runs inside this loop, so Run is the sole sender
	// and may close the stream on the way out
	defer close(p.corrections)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		case <-p.wake:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	p.mu.Lock()
	if len(p.interest) == 0 {
		p.mu.Unlock()
		return
	}
	keys := make([]ProductKey, 0, len(p.interest))
	for k := range p.interest {
		keys = append(keys, k)
	}
	if p.cancelCycle != nil {
		p.cancelCycle()
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	p.cancelCycle = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.cancelCycle != nil {
			p.cancelCycle()
			p.cancelCycle = nil
		}
		p.mu.Unlock()
	}()

	for _, key := range keys {
		if cycleCtx.Err() != nil {
			return
		}

		available, err := p.checker.CheckAvailable(cycleCtx, key.ProductID, key.VariationID)
		if err != nil {
			if cycleCtx.Err() == nil {
				p.log.Warn("stock poll failed",
					"product_id", key.ProductID, "variation_id", key.VariationID, "error", err)
			}
			continue
		}

		status := domain.StockInStock
		if available <= 0 {
			status = domain.StockOutOfStock
		}

		select {
		case p.corrections <- Correction{
			ProductID:   key.ProductID,
			VariationID: key.VariationID,
			Available:   available,
			Status:      status,
		}:
		default:
			// a slow consumer only misses an update the next tick repeats
		}
	}
}
