package audio

import (
	"sync"
	"time"
)

// pump runs a fill function on its own goroutine and delivers the results
// as batches. It implements the Stop/Batches/SampleRate half of Source.
type pump struct {
	sampleRate uint32
	batchSize  int
	paced      bool
	limit      int

	mu       sync.Mutex
	started  bool
	batches  chan Batch
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newPump(sampleRate uint32, batchSize int) *pump {
	return &pump{
		sampleRate: sampleRate,
		batchSize:  batchSize,
		batches:    make(chan Batch, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// start launches the goroutine. fill writes up to len(dst) samples and
// returns how many; zero ends the stream.
func (p *pump) start(fill func(dst []float32) int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	go p.run(fill)
	return nil
}

func (p *pump) run(fill func([]float32) int) {
	defer close(p.done)
	defer close(p.batches)

	var tick <-chan time.Time
	if p.paced {
		period := time.Duration(float64(p.batchSize) / float64(p.sampleRate) * float64(time.Second))
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for sent := 0; p.limit == 0 || sent < p.limit; sent++ {
		samples := make([]float32, p.batchSize)
		n := fill(samples)
		if n == 0 {
			return
		}
		select {
		case p.batches <- Batch{Samples: samples[:n], SampleRate: p.sampleRate}:
		case <-p.stop:
			return
		}
		if tick != nil {
			select {
			case <-tick:
			case <-p.stop:
				return
			}
		}
	}
}

// Stop ends generation and waits for Batches to be closed.
func (p *pump) Stop() error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
	return nil
}

// Batches returns the channel batches arrive on.
func (p *pump) Batches() <-chan Batch {
	return p.batches
}

// SampleRate returns the rate every batch carries.
func (p *pump) SampleRate() uint32 {
	return p.sampleRate
}
