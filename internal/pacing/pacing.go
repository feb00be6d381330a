// Package pacing produces humanized wait durations for the engine loop.
// A plain uniform delay is a detectable signature, so NextDelay mixes short
// and long outlier bands into the base distribution, and MaybeMicroBreak
// forces an occasional long pause after a randomized number of interactions.
package pacing

import (
	"math/rand"
	"sync"
	"time"
)

const (
	shortOutlierChance = 0.10
	longOutlierChance  = 0.05

	shortBandMin = 150 * time.Millisecond
	shortBandMax = 450 * time.Millisecond
	longBandMin  = 8 * time.Second
	longBandMax  = 15 * time.Second

	breakMin = 20 * time.Second
	breakMax = 45 * time.Second

	breakThresholdMin = 20
	breakThresholdMax = 35
)

type Pacer struct {
	mu           sync.Mutex
	rng          *rand.Rand
	interactions int
	threshold    int
}

func New() *Pacer {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource allows deterministic seeding in tests.
func NewWithSource(src rand.Source) *Pacer {
	p := &Pacer{rng: rand.New(src)}
	p.threshold = p.randRange(breakThresholdMin, breakThresholdMax)
	return p
}

// NextDelay returns a wait duration for the [min, max] band. Roughly 10% of
// calls land in a short outlier band and 5% in a long one; the rest are
// uniform over [min, max].
func (p *Pacer) NextDelay(min, max time.Duration) time.Duration {
	if max < min {
		max = min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch r := p.rng.Float64(); {
	case r < shortOutlierChance:
		return p.durRange(shortBandMin, shortBandMax)
	case r < shortOutlierChance+longOutlierChance:
		return p.durRange(longBandMin, longBandMax)
	default:
		return p.durRange(min, max)
	}
}

// MaybeMicroBreak counts interactions and, once the randomized threshold is
// reached, returns a long break duration and re-arms with a fresh threshold.
// Returns 0 otherwise.
func (p *Pacer) MaybeMicroBreak() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interactions++
	if p.interactions < p.threshold {
		return 0
	}
	p.interactions = 0
	p.threshold = p.randRange(breakThresholdMin, breakThresholdMax)
	return p.durRange(breakMin, breakMax)
}

func (p *Pacer) durRange(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(p.rng.Int63n(int64(max-min+1)))
}

func (p *Pacer) randRange(min, max int) int {
	if max <= min {
		return min
	}
	return min + p.rng.Intn(max-min+1)
}
