package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shopbot/internal/metrics"
	"shopbot/internal/storage"
)

// HandlerError reports a handler that panicked
type HandlerError struct {
	Stage Stage
	Route string
	Value any
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s %q panicked: %v", e.Stage, e.Route, e.Value)
}

// Unwrap exposes the panic value when it was an error
func (e *HandlerError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Process runs one decoded update through de-duplication and the router.
// A non-nil error means the update was not handled and should be redelivered.
func (b *Bot) Process(ctx context.Context, u *Update) error {
	start := time.Now()
	defer func() { metrics.ObserveUpdate(time.Since(start)) }()

	logger := b.loggerFor(ctx).With(
		zap.Int("update_id", u.ID),
		zap.String("kind", string(u.Kind)),
		zap.Int64("user_id", u.UserID),
	)

	if b.dedupTTL > 0 && u.ID != 0 {
		first, err := b.states.MarkUpdate(ctx, u.ID, b.dedupTTL)
		if err != nil {
			metrics.IncUpdate(string(u.Kind), metrics.ResultError)
			logger.Error("Failed to record update id", zap.Error(err))
			return fmt.Errorf("mark update %d: %w", u.ID, err)
		}
		if !first {
			metrics.IncUpdate(string(u.Kind), metrics.ResultDuplicate)
			logger.Info("Skipping redelivered update")
			return nil
		}
	}

	unlock := b.locks.lock(u.UserID)
	defer unlock()

	if err := b.dispatch(ctx, u, logger); err != nil {
		metrics.IncUpdate(string(u.Kind), metrics.ResultError)
		var se *storage.StorageError
		if errors.As(err, &se) {
			metrics.IncStorageError(se.Op)
		}
		logger.Error("Failed to handle update", zap.Error(err))

		// Let the redelivery through
		if b.dedupTTL > 0 && u.ID != 0 {
			if rerr := b.states.ReleaseUpdate(context.WithoutCancel(ctx), u.ID); rerr != nil {
				logger.Warn("Failed to release update id", zap.Error(rerr))
			}
		}
		return err
	}

	metrics.IncUpdate(string(u.Kind), metrics.ResultOK)
	return nil
}

func (b *Bot) dispatch(ctx context.Context, u *Update, logger *zap.Logger) (err error) {
	var m *Match

	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			he := &HandlerError{Value: r}
			if m != nil {
				he.Stage, he.Route = m.Stage, m.Route
			}
			logger.Error("Recovered from panic in handler", zap.Any("panic", r))
			b.sendText(u.ChatID, "An error occurred while processing your request. Please try again.")
			err = he
		}
	}()

	if u.Kind == KindCallback {
		b.answerCallback(u.CallbackID, "")
	}

	m, err = b.router.Resolve(ctx, u)
	if err != nil {
		return err
	}
	metrics.IncRoute(string(m.Stage), m.Route)
	logger.Debug("Routed update",
		zap.String("stage", string(m.Stage)),
		zap.String("route", m.Route),
	)

	if err = m.Handler(ctx, u); err != nil {
		// The slot was taken while resolving; put it back so the retried
		// message reaches the same step
		if m.Stage == StageContinuation {
			if aerr := b.router.Await(context.WithoutCancel(ctx), u.UserID, m.Route); aerr != nil {
				logger.Warn("Failed to re-arm continuation", zap.Error(aerr))
			}
		}
		return err
	}
	return nil
}

type ctxKey int

const requestIDKey ctxKey = iota

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id attached to ctx by the HTTP layer
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (b *Bot) loggerFor(ctx context.Context) *zap.Logger {
	if id := RequestID(ctx); id != "" {
		return b.logger.With(zap.String("request_id", id))
	}
	return b.logger
}
