package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrOverloaded is returned by Submit when the pool and its backlog are full.
var ErrOverloaded = errors.New("worker pool overloaded")

// Pool runs pipeline jobs on a fixed number of goroutines.
type Pool struct {
	ants *ants.Pool
}

type PoolOption func(*[]ants.Option)

// WithMaxPending bounds how many submissions may wait for a free worker.
// With n <= 0 Submit fails immediately when every worker is busy.
// Without this option Submit waits for a free worker.
func WithMaxPending(n int) PoolOption {
	return func(opts *[]ants.Option) {
		if n <= 0 {
			*opts = append(*opts, ants.WithNonblocking(true))
			return
		}
		*opts = append(*opts, ants.WithMaxBlockingTasks(n))
	}
}

func NewPool(size int, opts ...PoolOption) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	antsOpts := []ants.Option{ants.WithPreAlloc(false)}
	for _, o := range opts {
		o(&antsOpts)
	}
	p, err := ants.NewPool(size, antsOpts...)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{ants: p}, nil
}

func (p *Pool) Submit(task func()) error {
	err := p.ants.Submit(task)
	if errors.Is(err, ants.ErrPoolOverload) {
		return ErrOverloaded
	}
	return err
}

// Running is the number of tasks currently executing.
func (p *Pool) Running() int {
	return p.ants.Running()
}

func (p *Pool) Size() int {
	return p.ants.Cap()
}

// Release stops accepting work and waits up to timeout for running tasks.
func (p *Pool) Release(timeout time.Duration) error {
	return p.ants.ReleaseTimeout(timeout)
}
