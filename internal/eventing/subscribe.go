package eventing

import (
	"context"
	"fmt"
)

// Subscribe registers a typed handler under a consumer name. Errors are
// prefixed with the consumer name.
func Subscribe[T any](bus EventBus, consumerName string, handler func(ctx context.Context, event T) error) {
	if bus == nil || handler == nil {
		return
	}
	bus.Subscribe(EventTypeOf[T](), func(ctx context.Context, event any) error {
		typed, ok := event.(T)
		if !ok {
			if ptr, isPtr := event.(*T); isPtr && ptr != nil {
				typed = *ptr
			} else {
				return ErrInvalidEventType
			}
		}
		if err := handler(ctx, typed); err != nil {
			return fmt.Errorf("%s: %w", consumerName, err)
		}
		return nil
	})
}
