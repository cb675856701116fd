package middleware

import "context"

type requestIDs struct {
	operatorID string
	sessionID  string
}

type requestIDsKey struct{}

func withRequestIDs(ctx context.Context, ids *requestIDs) context.Context {
	return context.WithValue(ctx, requestIDsKey{}, ids)
}

func requestIDsFrom(ctx context.Context) *requestIDs {
	ids, _ := ctx.Value(requestIDsKey{}).(*requestIDs)
	return ids
}
