package action

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Spok95/campus-community/internal/metrics"
	"github.com/Spok95/campus-community/internal/observability"
)

// Detail is an expected failure whose text replaces the code's default message.
type Detail string

func (d Detail) Error() string       { return string(d) }
func (d Detail) UserMessage() string { return string(d) }

type userMessager interface {
	UserMessage() string
}

// Finish turns the (data, code, err) of an operation into its envelope.
// Errors carrying a UserMessage keep code and override the message; any other
// error is reported and downgraded to SERVER_ERROR.
func Finish[T any, C Code](ctx context.Context, log *zap.Logger, domain string, data *T, code C, err error) Response[T, C] {
	msg := ""
	if err != nil {
		var um userMessager
		if errors.As(err, &um) {
			msg = um.UserMessage()
		} else {
			observability.Report(ctx, log, domain, err)
			code = C("SERVER_ERROR")
		}
	}
	metrics.ObserveAction(domain, string(code))

	if code.Succeeded() && err == nil {
		return OK(data, code)
	}
	return FailMsg[T](code, msg)
}
