package proxy

import "context"

type ctxKey int

const ctxKeyTaskID ctxKey = iota

// WithTaskID returns a new context that carries a task ID.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyTaskID, id)
}

// TaskIDFrom extracts the task ID from ctx.
func TaskIDFrom(ctx context.Context) (string, bool) {
	v := ctx.Value(ctxKeyTaskID)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
