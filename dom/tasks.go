package dom

import "context"

// Async runs work on its own goroutine and queues then(err) onto the document
// task queue once work returns. then runs exactly once, from Flush or Settle,
// so it may mutate the tree.
func (d *Document) Async(work func() error, then func(error)) {
	d.mu.Lock()
	d.pending++
	d.mu.Unlock()
	go func() {
		err := work()
		d.mu.Lock()
		d.pending--
		d.queue = append(d.queue, func() { then(err) })
		d.mu.Unlock()
		d.notify()
	}()
}

func (d *Document) notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending reports the number of Async operations that have not finished.
func (d *Document) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush runs every queued task without waiting and returns how many ran.
// Tasks queued by tasks are run in the same call.
func (d *Document) Flush() int {
	ran := 0
	for {
		d.mu.Lock()
		q := d.queue
		d.queue = nil
		d.mu.Unlock()
		if len(q) == 0 {
			return ran
		}
		for _, fn := range q {
			fn()
			ran++
		}
	}
}

// Settle runs queued tasks until no Async work is outstanding, or ctx ends.
func (d *Document) Settle(ctx context.Context) error {
	for {
		d.Flush()
		d.mu.Lock()
		idle := d.pending == 0 && len(d.queue) == 0
		d.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		}
	}
}
