package queue

import (
	"sync"
	"time"
)

// Probe is a scheduled health check against a downstream service.
type Probe struct {
	Service string
	URL     string
	NextAt  time.Time
}

type Queue struct {
	items []*Probe
	mu    sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{
		items: make([]*Probe, 0),
	}
}

func (q *Queue) Enqueue(p *Probe) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, p)
}

// Dequeue removes and returns a probe that is due, or nil if none is.
func (q *Queue) Dequeue() *Probe {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for i, p := range q.items {
		if p.NextAt.Before(now) || p.NextAt.Equal(now) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return p
		}
	}
	return nil
}

// Peek returns a due probe without removing it, or nil.
func (q *Queue) Peek() *Probe {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for _, p := range q.items {
		if p.NextAt.Before(now) || p.NextAt.Equal(now) {
			return p
		}
	}
	return nil
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
