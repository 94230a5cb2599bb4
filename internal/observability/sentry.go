package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/Spok95/campus-community/internal/ctxutil"
	"github.com/Spok95/campus-community/internal/metrics"
)

func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}

// CaptureCtx tags the event with the operation and user from ctx.
func CaptureCtx(ctx context.Context, err error) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if op, ok := ctxutil.Op(ctx); ok {
			scope.SetTag("op", op)
		}
		if uid, ok := ctxutil.UserID(ctx); ok {
			scope.SetUser(sentry.User{ID: uid})
		}
		if rid, ok := ctxutil.RequestID(ctx); ok {
			scope.SetTag("request_id", rid)
		}
		sentry.CaptureException(err)
	})
}

// Report handles an error that is about to be downgraded to SERVER_ERROR.
func Report(ctx context.Context, log *zap.Logger, domain string, err error) {
	if err == nil {
		return
	}
	fields := []zap.Field{zap.String("domain", domain), zap.Error(err)}
	if op, ok := ctxutil.Op(ctx); ok {
		fields = append(fields, zap.String("op", op))
	}
	if uid, ok := ctxutil.UserID(ctx); ok {
		fields = append(fields, zap.String("user_id", uid))
	}
	if log != nil {
		log.Error("action failed", fields...)
	}
	metrics.ActionErrors.WithLabelValues(domain).Inc()
	CaptureCtx(ctx, err)
}
