package oracle

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/domain"
)

// Point holds the latest mindshare reading for one subject.
type Point struct {
	SubjectID uint64
	Rank      uint64
	Score     decimal.Decimal
	UpdatedAt time.Time
}

// Notifier receives oracle events. Implemented by the webhook service.
type Notifier interface {
	DispatchPriceUpdated(p Point)
	DispatchPriceStale(p Point)
}

// Persister receives write-through copies of oracle points so they
// survive restarts. A nil Persister disables persistence.
type Persister interface {
	SavePoint(p Point) error
}

// Oracle holds the latest mindshare score per subject plus its last
// update time, and answers point queries with a staleness flag.
type Oracle struct {
	mu        sync.RWMutex
	maxDelay  time.Duration
	points    map[uint64]Point
	subjects  *domain.SubjectRegistry
	notifier  Notifier
	persister Persister
	now       func() time.Time
}

// New creates an Oracle. A reading older than maxDelay is stale.
// notifier and persister may be nil.
func New(maxDelay time.Duration, subjects *domain.SubjectRegistry, notifier Notifier, persister Persister) *Oracle {
	return &Oracle{
		maxDelay:  maxDelay,
		points:    make(map[uint64]Point),
		subjects:  subjects,
		notifier:  notifier,
		persister: persister,
		now:       time.Now,
	}
}

// GetPrice returns the latest score for the subject and whether it is
// stale. An unknown subject reads as (0, stale) so every
// price-dependent operation fails rather than trading at a default.
func (o *Oracle) GetPrice(subjectID uint64) (decimal.Decimal, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	p, ok := o.points[subjectID]
	if !ok {
		return decimal.Zero, true
	}
	return p.Score, o.stale(p)
}

// Point returns the full stored reading for a subject.
func (o *Oracle) Point(subjectID uint64) (Point, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	p, ok := o.points[subjectID]
	return p, ok
}

// UpdateAll overwrites the stored reading for every supplied subject.
// The three slices are positional: ids[i] receives ranks[i]/scores[i].
// It rejects empty input, mismatched lengths, and any zero id, zero
// rank, or non-positive score as malformed. If a previous reading had
// already gone stale, a stale notification for the old value is
// dispatched before the update notification for the new one.
//
// Caller gating (the updater role) is enforced at the handler layer.
func (o *Oracle) UpdateAll(ids []uint64, ranks []uint64, scores []decimal.Decimal) error {
	if len(ids) == 0 {
		return domain.ErrEmptyInput
	}
	if len(ids) != len(ranks) || len(ids) != len(scores) {
		return domain.ErrLengthMismatch
	}
	for i := range ids {
		if ids[i] == 0 || ranks[i] == 0 || !scores[i].IsPositive() {
			return domain.ErrZeroField
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	for i, id := range ids {
		if prev, ok := o.points[id]; ok && o.stale(prev) && o.notifier != nil {
			o.notifier.DispatchPriceStale(prev)
		}

		p := Point{
			SubjectID: id,
			Rank:      ranks[i],
			Score:     scores[i],
			UpdatedAt: now,
		}
		o.points[id] = p
		o.subjects.Register(id)

		if o.persister != nil {
			_ = o.persister.SavePoint(p)
		}
		if o.notifier != nil {
			o.notifier.DispatchPriceUpdated(p)
		}
	}
	return nil
}

// Restore loads previously persisted points, keeping their original
// timestamps so staleness carries across restarts.
func (o *Oracle) Restore(points []Point) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, p := range points {
		o.points[p.SubjectID] = p
		o.subjects.Register(p.SubjectID)
	}
}

// stale reports whether a reading has exceeded the update delay.
// Callers must hold at least the read lock.
func (o *Oracle) stale(p Point) bool {
	return o.now().Sub(p.UpdatedAt) > o.maxDelay
}
