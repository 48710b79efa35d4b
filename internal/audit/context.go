package audit

import "context"

type contextKey int

const (
	userKey contextKey = iota
	paramsKey
	correlationKey
)

// WithUser tags ctx with the authenticated caller.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithParams attaches the call arguments recorded with the entry.
func WithParams(ctx context.Context, params map[string]interface{}) context.Context {
	return context.WithValue(ctx, paramsKey, params)
}

// WithCorrelationID attaches the packet correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// UserFromContext returns the caller, or "unknown".
func UserFromContext(ctx context.Context) string {
	if user, ok := ctx.Value(userKey).(string); ok && user != "" {
		return user
	}
	return "unknown"
}

// ParamsFromContext returns the attached params, or an empty map.
func ParamsFromContext(ctx context.Context) map[string]interface{} {
	if params, ok := ctx.Value(paramsKey).(map[string]interface{}); ok {
		return params
	}
	return make(map[string]interface{})
}

// CorrelationIDFromContext returns the attached correlation id, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}
