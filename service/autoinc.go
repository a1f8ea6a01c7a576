package service

import "context"

// Entity classes with their own key sequence.
const (
	ClassUser    = "user"
	ClassThread  = "thread"
	ClassMessage = "message"
	ClassUpdate  = "update"
	ClassEvent   = "event"
)

type counter interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// Allocator hands out primary keys. Each class is one counter in the store,
// advanced with a single atomic increment, so keys are distinct and
// increasing across processes and never reused.
type Allocator struct {
	store counter
}

func NewAllocator(store counter) *Allocator {
	return &Allocator{store: store}
}

func (a *Allocator) Next(ctx context.Context, class string) (int64, error) {
	n, err := a.store.Incr(ctx, counterKey(class))
	if err != nil {
		return 0, storeFailure("allocate "+class+" key", err)
	}
	return n, nil
}
