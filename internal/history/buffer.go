package history

import (
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// DefaultCapacity holds 24 hours of one-minute samples.
const DefaultCapacity = 1440

var ErrOutOfOrderSample = errors.New("sample timestamp is not after the latest entry")

// Buffer is a fixed-capacity ring of samples ordered by timestamp. It has a
// single writer (the control loop); readers get copies or lazy sequences.
type Buffer struct {
	mu      sync.RWMutex
	samples []models.Sample
	head    int // index of the oldest entry
	size    int
}

func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		samples: make([]models.Sample, capacity),
	}
}

// Append stores the sample, evicting the oldest entry once full. Samples not
// strictly newer than the latest entry are rejected and leave the buffer as is.
func (b *Buffer) Append(sample models.Sample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size > 0 {
		last := b.samples[b.index(b.size-1)]
		if !sample.Timestamp.After(last.Timestamp) {
			return fmt.Errorf("%w: %s <= %s", ErrOutOfOrderSample,
				sample.Timestamp.Format(time.RFC3339Nano), last.Timestamp.Format(time.RFC3339Nano))
		}
	}

	sample = sample.Clone()
	if b.size < len(b.samples) {
		b.samples[b.index(b.size)] = sample
		b.size++
		return nil
	}

	b.samples[b.head] = sample
	b.head = (b.head + 1) % len(b.samples)
	return nil
}

// Window yields, oldest first, the samples whose timestamp lies within d of
// the latest entry. Each iteration copies the window under the lock and
// yields after releasing it, so the loop body may call Append.
func (b *Buffer) Window(d time.Duration) iter.Seq[models.Sample] {
	return func(yield func(models.Sample) bool) {
		for _, s := range b.window(d) {
			if !yield(s) {
				return
			}
		}
	}
}

func (b *Buffer) window(d time.Duration) []models.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return nil
	}

	cutoff := b.samples[b.index(b.size-1)].Timestamp.Add(-d)
	start := b.firstAtOrAfter(cutoff)
	out := make([]models.Sample, 0, b.size-start)
	for i := start; i < b.size; i++ {
		out = append(out, b.samples[b.index(i)].Clone())
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *Buffer) Cap() int {
	return len(b.samples)
}

func (b *Buffer) Latest() (models.Sample, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return models.Sample{}, false
	}
	return b.samples[b.index(b.size-1)].Clone(), true
}

// Snapshot returns an ordered copy of every entry.
func (b *Buffer) Snapshot() []models.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Sample, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.samples[b.index(i)].Clone()
	}
	return out
}

// Values returns the CPU utilization series, oldest first.
func (b *Buffer) Values() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]float64, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.samples[b.index(i)].CPUUtilization
	}
	return out
}

// index maps a logical position (0 = oldest) to a slot in the ring.
func (b *Buffer) index(pos int) int {
	return (b.head + pos) % len(b.samples)
}

// firstAtOrAfter binary-searches the logical position of the first sample
// with timestamp >= t. Caller holds the lock.
func (b *Buffer) firstAtOrAfter(t time.Time) int {
	lo, hi := 0, b.size
	for lo < hi {
		mid := (lo + hi) / 2
		if b.samples[b.index(mid)].Timestamp.Before(t) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
