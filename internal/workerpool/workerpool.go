// Package workerpool is a small fixed-size goroutine pool supervised by a
// tomb.Tomb, generalized from the teacher's internal/worker.go so both the
// connection-accept side and (were it ever needed) another caller can
// reuse it.
package workerpool

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// defaultTaskChanSize bounds how many pending tasks may queue before
// AddTask blocks the caller.
const defaultTaskChanSize = 256

// WorkFunc processes one task. Returning a non-nil error kills the tomb,
// shutting down every other worker in the pool.
type WorkFunc func(t *tomb.Tomb, task any) error

// Pool is a fixed number of goroutines pulling tasks off a shared channel.
// Tasks are untyped (any), matching the teacher's idiom of pushing raw
// net.Conn values through the pool — the spec has no requirement for
// compile-time task genericity, only for bounded concurrent I/O.
type Pool struct {
	size  int
	tasks chan any
	work  WorkFunc
}

// New returns a pool sized to run up to `size` workers concurrently.
func New(size int) *Pool {
	return &Pool{
		size:  size,
		tasks: make(chan any, defaultTaskChanSize),
	}
}

// AddTask enqueues a task for a worker to pick up. Blocks if the queue is
// full; backpressure is the caller's responsibility (spec.md §5).
func (p *Pool) AddTask(task any) {
	p.tasks <- task
}

// Run starts `size` supervised workers and blocks until the tomb is
// killed. Each worker loops: pull a task, run work, repeat, until the tomb
// is dying.
func (p *Pool) Run(t *tomb.Tomb, work WorkFunc) {
	p.work = work
	log.Info().Int("workers", p.size).Msg("starting worker pool")
	for i := 0; i < p.size; i++ {
		t.Go(p.loop(t))
	}
}

func (p *Pool) loop(t *tomb.Tomb) func() error {
	return func() error {
		for {
			select {
			case <-t.Dying():
				return nil
			case task := <-p.tasks:
				if err := p.work(t, task); err != nil {
					log.Error().Err(err).Msg("worker exiting")
					return err
				}
			}
		}
	}
}
