package eventing

import "context"

type contextKey string

const contextKeyEventID contextKey = "eventing.event_id"

// WithEventID sets event id in context.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, contextKeyEventID, eventID)
}

// EventIDFromContext returns the event id if set.
func EventIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	eventID, ok := ctx.Value(contextKeyEventID).(string)
	return eventID, ok && eventID != ""
}
