// Package sscontext provides logging and error-reporting helpers that carry
// request-scoped metadata through a context.Context.
package sscontext

import (
	"os"

	"github.com/getsentry/raven-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type contextKey int

const (
	operationKey contextKey = iota
	endpointKey
)

// FromOperation generates a new context with the given context as its parent,
// and stores the name of the operation being performed with the context. The
// operation can be retrieved again using OperationFromContext.
func FromOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey, operation)
}

// OperationFromContext returns the operation name stored in the context with
// FromOperation. If no operation is stored in the context, the second argument
// is false. Otherwise it is true.
func OperationFromContext(ctx context.Context) (string, bool) {
	operation, ok := ctx.Value(operationKey).(string)
	return operation, ok
}

// FromEndpoint generates a new context with the given context as its parent,
// and stores the upstream endpoint URL with the context.
func FromEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, endpointKey, endpoint)
}

// EndpointFromContext returns the endpoint stored in the context with
// FromEndpoint. If no endpoint is stored in the context, the second argument
// is false. Otherwise it is true.
func EndpointFromContext(ctx context.Context) (string, bool) {
	endpoint, ok := ctx.Value(endpointKey).(string)
	return endpoint, ok
}

// LoggerFromContext returns a logrus.Entry with the PID of the current process
// set as a field, and also includes every field set using the From* functions
// in this package.
func LoggerFromContext(ctx context.Context) *logrus.Entry {
	entry := logrus.WithField("pid", os.Getpid())

	if operation, ok := OperationFromContext(ctx); ok {
		entry = entry.WithField("operation", operation)
	}

	if endpoint, ok := EndpointFromContext(ctx); ok {
		entry = entry.WithField("endpoint", endpoint)
	}

	return entry
}

// CaptureError takes an error and captures the details about it and sends it
// off to Sentry, if Sentry has been set up.
func CaptureError(ctx context.Context, err error) {
	if raven.DefaultClient == nil {
		// No client, so we can short-circuit to make things faster
		return
	}

	interfaces := []raven.Interface{
		raven.NewException(err, raven.NewStacktrace(1, 3, []string{"github.com/sixsq/slipstream-cloud"})),
	}

	tags := make(map[string]string)
	if operation, ok := OperationFromContext(ctx); ok {
		tags["operation"] = operation
	}
	if endpoint, ok := EndpointFromContext(ctx); ok {
		tags["endpoint"] = endpoint
	}

	packet := raven.NewPacket(
		err.Error(),
		interfaces...,
	)
	raven.DefaultClient.Capture(packet, tags)
}
