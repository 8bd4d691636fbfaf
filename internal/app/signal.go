package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalError is the cancellation cause set when the process is asked to stop.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return "received signal " + e.Signal.String()
}

// WithSignals returns a context cancelled with a *SignalError cause on
// SIGINT, SIGTERM or SIGHUP. Call stop to release the signal handler.
func WithSignals(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancelCause(parent)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		select {
		case sig := <-ch:
			cancel(&SignalError{Signal: sig})
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(ch)
		cancel(context.Canceled)
	}
}
