package server

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// backlogWarnThreshold is how full the task channel can get, as a fraction
// of taskChanSize, before AddTask logs a warning. A trading venue dropping
// a PlaceOrder or CancelOrder silently because the channel send blocked
// past its caller's expectations is worse than a noisy log line.
const backlogWarnThreshold = taskChanSize * 3 / 4

// WorkerFunction is the per-task unit of work a WorkerPool runs.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool fans connections out across a fixed number of tomb-supervised
// goroutines. inFlight tracks tasks a worker has picked up but not yet
// finished, separately from whatever is still waiting in tasks.
type WorkerPool struct {
	n        int
	tasks    chan any
	inFlight int64
}

// NewWorkerPool returns a pool sized for size concurrent workers.
func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{n: size, tasks: make(chan any, taskChanSize)}
}

// AddTask enqueues a unit of work (a net.Conn, in this package) for a worker
// to pick up, warning once the channel backs up close to its capacity.
func (p *WorkerPool) AddTask(task any) {
	if depth := len(p.tasks); depth >= backlogWarnThreshold {
		log.Warn().Int("depth", depth).Int("capacity", taskChanSize).Msg("worker pool backlog building up")
	}
	p.tasks <- task
}

// Backlog returns the number of tasks enqueued but not yet picked up by a
// worker.
func (p *WorkerPool) Backlog() int {
	return len(p.tasks)
}

// InFlight returns the number of tasks a worker has picked up but not yet
// finished running.
func (p *WorkerPool) InFlight() int64 {
	return atomic.LoadInt64(&p.inFlight)
}

// Setup keeps the pool topped up with n workers until t starts dying.
func (p *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	log.Info().Int("workers", p.n).Msg("starting worker pool")
	active := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if active < p.n {
				t.Go(func() error {
					err := p.worker(t, work)
					active--
					return err
				})
				active++
			}
		}
	}
}

func (p *WorkerPool) worker(t *tomb.Tomb, work WorkerFunction) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-p.tasks:
		atomic.AddInt64(&p.inFlight, 1)
		defer atomic.AddInt64(&p.inFlight, -1)
		if err := work(t, task); err != nil {
			log.Error().Err(err).Msg("worker exiting")
			return err
		}
	}
	return nil
}
