package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID    ctxKey = "user_id"
	CtxKeySessionID ctxKey = "session_id"
	CtxKeyScopes    ctxKey = "scopes"
	CtxKeyAuth      ctxKey = "auth" // full AuthInfo
)

func scopesFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyScopes).([]string); ok {
		return v
	}
	return nil
}

// AuthInfoFromCtx returns the AuthInfo injected by AuthnMiddleware, if any.
func AuthInfoFromCtx(ctx context.Context) (AuthInfo, bool) {
	v, ok := ctx.Value(CtxKeyAuth).(AuthInfo)
	return v, ok
}
