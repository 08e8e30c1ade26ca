package port

import "context"

// Task is a unit of background work executed off the request path.
type Task func(ctx context.Context)

// TaskQueue decouples message submission from provider I/O. Enqueue never
// blocks on the work itself; with a single worker the queue preserves
// submission order end to end.
type TaskQueue interface {
	Enqueue(task Task) error
	Close(ctx context.Context) error
}
