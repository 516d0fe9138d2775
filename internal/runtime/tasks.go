package runtime

import "github.com/dop251/goja"

type task struct {
	id   int64
	fn   goja.Callable
	args []goja.Value

	cancelled bool
}

// taskQueue is the FIFO of deferred tasks scheduled by script code.
// Promise reactions are run by goja itself whenever control returns to Go;
// everything queued here waits for the next drain pass.
type taskQueue struct {
	queue   []*task
	running []*task
	nextID  int64
}

func (q *taskQueue) schedule(fn goja.Callable, args []goja.Value) int64 {
	q.nextID++
	q.queue = append(q.queue, &task{
		id:   q.nextID,
		fn:   fn,
		args: append([]goja.Value(nil), args...),
	})
	return q.nextID
}

// cancel drops a task that has not run yet. Unknown ids are ignored.
func (q *taskQueue) cancel(id int64) {
	for i, t := range q.queue {
		if t.id == id {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			return
		}
	}
	for _, t := range q.running {
		if t.id == id {
			t.cancelled = true
			return
		}
	}
}

func (q *taskQueue) pending() bool {
	return len(q.queue) > 0
}

func (q *taskQueue) len() int {
	return len(q.queue)
}

// runPass runs the tasks that were queued when the pass started.
// Tasks they schedule are left for the next pass. On failure the rest of the
// batch stays queued, ahead of anything scheduled during the pass.
func (q *taskQueue) runPass() error {
	batch := q.queue
	q.queue = nil
	q.running = batch
	defer func() { q.running = nil }()

	for i, t := range batch {
		if t.cancelled {
			continue
		}
		if _, err := t.fn(goja.Undefined(), t.args...); err != nil {
			rest := make([]*task, 0, len(batch)-i-1+len(q.queue))
			for _, r := range batch[i+1:] {
				if !r.cancelled {
					rest = append(rest, r)
				}
			}
			q.queue = append(rest, q.queue...)
			return err
		}
	}
	return nil
}

// reset discards every queued task and returns how many were dropped.
func (q *taskQueue) reset() int {
	n := len(q.queue)
	q.queue = nil
	return n
}
