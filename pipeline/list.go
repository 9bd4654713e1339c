package pipeline

import (
	"context"
	"sync"
)

// List is an unbounded fifo of values with a blocking TakeAll. It has its own
// lock so appending a batch never holds the staging buffer's lock.
type List struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    []uint32
}

// NewList creates an empty list
func NewList() *List {
	l := &List{}
	l.nonEmpty = sync.NewCond(&l.mu)
	return l
}

// Append adds values at the tail, in order, and wakes waiting readers.
func (l *List) Append(values ...uint32) {
	if len(values) == 0 {
		return
	}
	l.mu.Lock()
	l.items = append(l.items, values...)
	l.mu.Unlock()
	l.nonEmpty.Broadcast()
}

// TakeAll blocks until the list is non-empty or ctx ends, then removes and
// returns every value.
func (l *List) TakeAll(ctx context.Context) ([]uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.items) == 0 {
		stop := context.AfterFunc(ctx, func() {
			l.mu.Lock()
			l.nonEmpty.Broadcast()
			l.mu.Unlock()
		})
		defer stop()

		for len(l.items) == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			l.nonEmpty.Wait()
		}
	}

	out := l.items
	l.items = nil
	return out, nil
}

// Len returns the number of queued values
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Clear drops every queued value
func (l *List) Clear() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
}
