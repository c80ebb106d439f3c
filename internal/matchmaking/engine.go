// internal/matchmaking/engine.go
//
// Matchmaking engine: one FIFO queue per mode.
// Responsibilities:
//   - Enqueue/dequeue with the one-queue-per-connection rule.
//   - Ranked pairing under a wait-time-expanding rating tolerance.
//   - Custom pairing strictly FIFO with dead-connection pruning.
//   - Periodic sweep so ranked tolerances keep widening while players wait,
//     plus a still-waiting notice to everyone left queued.
//
// Matched pairs are handed to the MatchHandler (room creation) outside the
// queue lock. If a matched connection died between pairing and confirmation,
// the survivor re-enters the head of its queue.

package matchmaking

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quorbit/quoridor-server/internal/proto"
)

// Tolerance bounds for ranked pairing.
const (
	baseTolerance   = 100
	tolerancePerSec = 10
	maxTolerance    = 500

	sweepInterval = 5 * time.Second
)

// Tolerance is the widest acceptable rating gap after a given wait.
// Monotonically non-decreasing, capped at maxTolerance.
func Tolerance(waited time.Duration) int {
	t := baseTolerance + int(waited.Seconds())*tolerancePerSec
	if t > maxTolerance {
		t = maxTolerance
	}
	return t
}

// MatchHandler receives both confirmed sides of a pairing.
type MatchHandler func(a, b proto.Client, mode proto.Mode)

// entry is one waiting connection.
type entry struct {
	client     proto.Client
	enqueuedAt time.Time
}

// Engine owns the two waiting queues. Each queue slot belongs exclusively
// to the engine; all mutation happens under one mutex.
type Engine struct {
	mu         sync.Mutex
	queues     map[proto.Mode][]*entry
	modeByConn map[string]proto.Mode

	onMatch MatchHandler
	now     func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewEngine starts the sweep loop and returns a ready engine.
func NewEngine(onMatch MatchHandler) *Engine {
	e := &Engine{
		queues:     map[proto.Mode][]*entry{proto.ModeRanked: {}, proto.ModeCustom: {}},
		modeByConn: make(map[string]proto.Mode),
		onMatch:    onMatch,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	e.wg.Add(1)
	go e.sweepLoop()
	return e
}

// Stop terminates the sweep loop.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

// Enqueue places a connection in the queue for mode, displacing any prior
// entry it held in either queue, and notifies it of the queue size.
func (e *Engine) Enqueue(c proto.Client, mode proto.Mode) {
	e.mu.Lock()
	e.removeLocked(c.ConnID())
	e.queues[mode] = append(e.queues[mode], &entry{client: c, enqueuedAt: e.now()})
	e.modeByConn[c.ConnID()] = mode
	size := len(e.queues[mode])
	e.mu.Unlock()

	log.Info().Str("conn", c.ConnID()).Str("mode", string(mode)).Int("size", size).Msg("queued")
	c.Send(proto.Envelope{Type: proto.EventQueueJoined, Data: proto.QueueJoined{Mode: mode, QueueSize: size}})

	e.TryMatch(mode)
}

// Dequeue removes a connection from whichever queue holds it and notifies
// it. Redundant leaves are silent no-ops.
func (e *Engine) Dequeue(connID string) {
	e.mu.Lock()
	c := e.removeLocked(connID)
	e.mu.Unlock()
	if c != nil {
		c.Send(proto.Envelope{Type: proto.EventQueueLeft})
	}
}

// DropConnection clears queue membership on disconnect or eviction,
// without sending anything to the (gone) connection.
func (e *Engine) DropConnection(connID string) {
	e.mu.Lock()
	e.removeLocked(connID)
	e.mu.Unlock()
}

// InQueue reports whether a connection currently holds a queue slot.
func (e *Engine) InQueue(connID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.modeByConn[connID]
	return ok
}

// removeLocked deletes connID's entry wherever it sits. Caller holds e.mu.
func (e *Engine) removeLocked(connID string) proto.Client {
	mode, ok := e.modeByConn[connID]
	if !ok {
		return nil
	}
	delete(e.modeByConn, connID)
	q := e.queues[mode]
	for i, en := range q {
		if en.client.ConnID() == connID {
			e.queues[mode] = append(q[:i], q[i+1:]...)
			return en.client
		}
	}
	return nil
}

// TryMatch drains as many pairings as the mode's algorithm allows.
func (e *Engine) TryMatch(mode proto.Mode) {
	for {
		a, b := e.nextPair(mode)
		if a == nil {
			return
		}

		// Confirmation: both connections must still be live. A dead side
		// sends the survivor back to the head of its queue.
		if !a.Alive() || !b.Alive() {
			e.mu.Lock()
			for _, c := range []proto.Client{a, b} {
				if c.Alive() {
					e.queues[mode] = append([]*entry{{client: c, enqueuedAt: e.now()}}, e.queues[mode]...)
					e.modeByConn[c.ConnID()] = mode
				}
			}
			e.mu.Unlock()
			continue
		}

		log.Info().
			Str("mode", string(mode)).
			Str("a", a.ConnID()).Int("ratingA", a.Rating()).
			Str("b", b.ConnID()).Int("ratingB", b.Rating()).
			Msg("match found")
		e.onMatch(a, b, mode)
	}
}

// nextPair pops one pairing under the lock, or (nil, nil).
func (e *Engine) nextPair(mode proto.Mode) (proto.Client, proto.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mode == proto.ModeCustom {
		e.pruneDeadLocked(mode)
	}
	q := e.queues[mode]
	if len(q) < 2 {
		return nil, nil
	}

	switch mode {
	case proto.ModeRanked:
		// Greedy earliest-first: the first in-tolerance pair wins, judged
		// by the earlier entry's own tolerance.
		now := e.now()
		for i := 0; i < len(q)-1; i++ {
			tol := Tolerance(now.Sub(q[i].enqueuedAt))
			for j := i + 1; j < len(q); j++ {
				diff := q[i].client.Rating() - q[j].client.Rating()
				if diff < 0 {
					diff = -diff
				}
				if diff <= tol {
					return e.takeLocked(mode, i, j)
				}
			}
		}
		return nil, nil
	default: // custom: strict FIFO
		return e.takeLocked(mode, 0, 1)
	}
}

// takeLocked removes indices i<j from the queue and returns their clients.
func (e *Engine) takeLocked(mode proto.Mode, i, j int) (proto.Client, proto.Client) {
	q := e.queues[mode]
	a, b := q[i].client, q[j].client
	q = append(q[:j], q[j+1:]...)
	q = append(q[:i], q[i+1:]...)
	e.queues[mode] = q
	delete(e.modeByConn, a.ConnID())
	delete(e.modeByConn, b.ConnID())
	return a, b
}

// pruneDeadLocked drops entries whose connection has gone away.
func (e *Engine) pruneDeadLocked(mode proto.Mode) {
	q := e.queues[mode][:0]
	for _, en := range e.queues[mode] {
		if en.client.Alive() {
			q = append(q, en)
		} else {
			delete(e.modeByConn, en.client.ConnID())
		}
	}
	e.queues[mode] = q
}

// sweepLoop re-runs matching so ranked tolerances take effect as wait times
// grow, and tells everyone still queued that they are still waiting.
func (e *Engine) sweepLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Sweep()
		case <-e.stopCh:
			return
		}
	}
}

// Sweep runs one matching pass over both modes. Exported for tests.
func (e *Engine) Sweep() {
	for _, mode := range []proto.Mode{proto.ModeRanked, proto.ModeCustom} {
		e.TryMatch(mode)

		e.mu.Lock()
		waiting := make([]proto.Client, 0, len(e.queues[mode]))
		for _, en := range e.queues[mode] {
			waiting = append(waiting, en.client)
		}
		size := len(waiting)
		e.mu.Unlock()

		for _, c := range waiting {
			c.Send(proto.Envelope{Type: proto.EventQueueJoined, Data: proto.QueueJoined{Mode: mode, QueueSize: size}})
		}
	}
}
