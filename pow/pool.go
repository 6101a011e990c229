package pow

import (
	"runtime"
	"sync"

	"github.com/NebulousLabs/threadgroup"
	"github.com/raiblocks/walletcore/crypto"
	"github.com/raiblocks/walletcore/persist"
)

// batchSize is the number of candidate nonces a worker tries between ticket
// checks, balancing responsiveness to cancellation against lock contention.
const batchSize = 256

// Config tunes a Pool.
type Config struct {
	// Threads is the number of mining goroutines. Zero or negative selects
	// runtime.NumCPU(), with a floor of 1.
	Threads int
}

// DefaultConfig returns a Config sized to the local hardware.
func DefaultConfig() Config {
	return Config{Threads: runtime.NumCPU()}
}

// Pool mines proof-of-work nonces for roots submitted by any number of
// concurrent callers. Workers race on a single "current root" slot; a
// monotonic ticket lets a worker cheaply detect that the root it is mining
// changed, without taking the lock on every candidate.
type Pool struct {
	cfg Config
	log *persist.Logger

	mu           sync.Mutex
	producerCond *sync.Cond
	consumerCond *sync.Cond

	queue   []crypto.Hash
	current crypto.Hash
	ticket  uint64
	results map[crypto.Hash]uint64

	stopped bool
	wg      sync.WaitGroup
	tg      threadgroup.ThreadGroup
}

// New creates and starts a Pool with cfg.Threads worker goroutines (minimum
// one). log may be nil, in which case the pool does not log.
func New(cfg Config, log *persist.Logger) *Pool {
	if cfg.Threads < 1 {
		cfg.Threads = runtime.NumCPU()
	}
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	p := &Pool{
		cfg:     cfg,
		log:     log,
		results: make(map[crypto.Hash]uint64),
	}
	p.producerCond = sync.NewCond(&p.mu)
	p.consumerCond = sync.NewCond(&p.mu)
	for i := 0; i < cfg.Threads; i++ {
		p.wg.Add(1)
		go p.worker(uint64(i))
	}
	if p.log != nil {
		p.log.Printf("work pool started with %d threads", cfg.Threads)
	}
	return p
}

// Generate blocks until it finds a 64-bit nonce satisfying Validate(root,
// nonce). root must be non-zero. If the pool is stopped before a result for
// root is published, Generate returns 0 without a valid nonce.
func (p *Pool) Generate(root crypto.Hash) uint64 {
	if err := p.tg.Add(); err != nil {
		// pool is shutting down; nothing sensible to mine into
		return 0
	}
	defer p.tg.Done()

	p.mu.Lock()
	p.queue = append(p.queue, root)
	p.producerCond.Signal()
	for {
		if nonce, ok := p.results[root]; ok {
			delete(p.results, root)
			p.mu.Unlock()
			return nonce
		}
		if p.stopped {
			p.mu.Unlock()
			return 0
		}
		p.consumerCond.Wait()
	}
}

// Validate reports whether nonce is valid proof of work for root.
func (p *Pool) Validate(root crypto.Hash, nonce uint64) bool {
	return Validate(root, nonce)
}

// Stop signals every worker to exit once its in-flight candidate search
// batch finishes, discards the pending queue unmined and wakes waiting
// Generate calls so they return 0 instead of blocking forever, and waits
// for all workers to join.
func (p *Pool) Stop() {
	p.tg.Stop()

	p.mu.Lock()
	p.stopped = true
	p.queue = nil
	p.producerCond.Broadcast()
	p.consumerCond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	if p.log != nil {
		p.log.Println("work pool stopped")
	}
}

// worker is the body run by each mining goroutine, implementing the
// two-phase loop from the pool's design: find a root to mine (as consumer
// of the queue), then race to mine it (as producer of a result).
func (p *Pool) worker(seed uint64) {
	defer p.wg.Done()
	rng := newXorshift1024star(seed + 1)

	p.mu.Lock()
	for {
		if p.stopped {
			p.mu.Unlock()
			return
		}
		if p.current != (crypto.Hash{}) {
			root := p.current
			ticket := p.ticket
			p.mu.Unlock()

			nonce, found := mineBatch(rng, root, ticket, p)
			if found {
				p.mu.Lock()
				if !p.stopped && p.current == root && p.ticket == ticket {
					p.ticket++
					p.results[root] = nonce
					p.current = crypto.Hash{}
					p.consumerCond.Broadcast()
					p.producerCond.Signal()
				}
				continue
			}
			p.mu.Lock()
			continue
		}
		if len(p.queue) > 0 {
			p.current = p.queue[0]
			p.queue = p.queue[1:]
			p.ticket++
			p.producerCond.Signal()
			continue
		}
		p.producerCond.Wait()
	}
}

// mineBatch iterates batches of candidate nonces from rng until one
// satisfies Validate(root, ...), or the pool's ticket advances past ticket
// (meaning another worker won, the root changed, or the pool stopped), in
// which case it abandons the search.
func mineBatch(rng *xorshift1024star, root crypto.Hash, ticket uint64, p *Pool) (uint64, bool) {
	for {
		for i := 0; i < batchSize; i++ {
			nonce := rng.Next()
			if Validate(root, nonce) {
				return nonce, true
			}
		}
		p.mu.Lock()
		stillCurrent := !p.stopped && p.ticket == ticket
		p.mu.Unlock()
		if !stillCurrent {
			return 0, false
		}
	}
}
