package api

import (
	"context"

	"github.com/pagewatch/pagewatch/internal/queue"
)

// CheckTask queues a check of the task and waits for its result.
func (a *Api) CheckTask(ctx context.Context, id string) (queue.Result, error) {
	if id == "" {
		return queue.Result{}, ErrMissingTaskID
	}
	ch := make(chan queue.Result, 1)
	a.queue.Enqueue(id, func(r queue.Result) { ch <- r })
	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return queue.Result{}, ctx.Err()
	}
}

// QueueTask queues a check without waiting. It reports whether the job
// was accepted.
func (a *Api) QueueTask(id string) bool {
	return a.queue.Enqueue(id, nil)
}
