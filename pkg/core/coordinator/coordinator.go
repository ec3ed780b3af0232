// Package coordinator is the entry point to the service layer. Every request
// runs in one storage transaction: the actor is re-verified inside it, the
// service call runs, and the transaction commits or rolls back as a whole.
// Conflicting transactions are retried with exponential backoff.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/invariants"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

const tracerName = "github.com/jakechorley/charity-hub/pkg/core/coordinator"

// RetryPolicy bounds how often a failed transaction is attempted.
// Attempt counts include the first try, so 1 disables retries for that kind.
// Validation failures are never retried.
type RetryPolicy struct {
	ConflictAttempts int
	StorageAttempts  int
	InitialInterval  time.Duration
	MaxInterval      time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		ConflictAttempts: 5,
		StorageAttempts:  2,
		InitialInterval:  20 * time.Millisecond,
		MaxInterval:      time.Second,
	}
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// Coordinator runs service operations inside transactions
type Coordinator struct {
	store  db.Store
	engine *invariants.Engine
	logger *zap.Logger
	tracer trace.Tracer
	retry  RetryPolicy
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithRetryPolicy replaces the default retry policy
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Coordinator) { c.retry = policy }
}

// WithEngine replaces the default invariant engine, e.g. to add rules
func WithEngine(engine *invariants.Engine) Option {
	return func(c *Coordinator) { c.engine = engine }
}

// WithTracerProvider uses tp instead of the global tracer provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) { c.tracer = tp.Tracer(tracerName) }
}

// New creates a Coordinator over store
func New(store db.Store, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		retry:  DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = invariants.NewEngine(logger)
	}
	if c.retry.ConflictAttempts < 1 {
		c.retry.ConflictAttempts = 1
	}
	if c.retry.StorageAttempts < 1 {
		c.retry.StorageAttempts = 1
	}
	return c
}

// Session is what an operation sees inside its transaction
type Session struct {
	Tx     db.Tx
	Engine *invariants.Engine
	Logger *zap.Logger
	// Actor is nil for anonymous requests
	Actor *model.Actor
}

// Run executes fn as one transaction on behalf of actor. The returned error
// is nil or an *apperr.Error.
func (c *Coordinator) Run(ctx context.Context, actor model.Actor, name string, fn func(ctx context.Context, s *Session) error) error {
	return c.run(ctx, &actor, name, fn)
}

// RunAnonymous executes fn without an authenticated actor. Only
// registration uses it.
func (c *Coordinator) RunAnonymous(ctx context.Context, name string, fn func(ctx context.Context, s *Session) error) error {
	return c.run(ctx, nil, name, fn)
}

func (c *Coordinator) run(ctx context.Context, actor *model.Actor, name string, fn func(ctx context.Context, s *Session) error) error {
	attrs := []attribute.KeyValue{attribute.String("charity_hub.operation", name)}
	fields := []zap.Field{zap.String("operation", name)}
	if actor != nil {
		attrs = append(attrs,
			attribute.String("charity_hub.actor.id", actor.UserID),
			attribute.String("charity_hub.actor.role", string(actor.Role)))
		fields = append(fields, zap.String("actor_id", actor.UserID))
	}
	ctx, span := c.tracer.Start(ctx, "coordinator."+name, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	var attempts, conflicts, failures int
	operation := func() (struct{}, error) {
		attempts++
		err := c.attempt(ctx, actor, fn)
		if err == nil {
			return struct{}{}, nil
		}
		appErr := apperr.FromStorage(err)
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(appErr)
		}
		switch appErr.Kind {
		case apperr.KindConflict:
			conflicts++
			if conflicts >= c.retry.ConflictAttempts {
				return struct{}{}, backoff.Permanent(appErr)
			}
		case apperr.KindStorage:
			failures++
			if failures >= c.retry.StorageAttempts {
				return struct{}{}, backoff.Permanent(appErr)
			}
		default:
			return struct{}{}, backoff.Permanent(appErr)
		}
		c.logger.Warn("Retrying operation",
			append(fields, zap.Int("attempt", attempts), zap.Stringer("kind", appErr.Kind), zap.Error(appErr))...)
		return struct{}{}, appErr
	}

	maxTries := uint(c.retry.ConflictAttempts + c.retry.StorageAttempts)
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.retry.backOff()),
		backoff.WithMaxTries(maxTries),
		backoff.WithMaxElapsedTime(0))

	span.SetAttributes(attribute.Int("charity_hub.attempts", attempts))
	fields = append(fields, zap.Int("attempts", attempts), zap.Duration("elapsed", time.Since(start)))
	if err == nil {
		span.SetStatus(otelcodes.Ok, "")
		c.logger.Debug("Operation committed", fields...)
		return nil
	}

	appErr := apperr.FromStorage(err)
	span.RecordError(appErr)
	span.SetStatus(otelcodes.Error, string(appErr.Code))
	span.SetAttributes(attribute.String("charity_hub.error.code", string(appErr.Code)))
	fields = append(fields, zap.String("code", string(appErr.Code)), zap.Error(appErr))
	if appErr.Kind == apperr.KindValidation {
		c.logger.Info("Operation rejected", fields...)
	} else {
		c.logger.Warn("Operation failed", fields...)
	}
	return appErr
}

// attempt runs fn in a fresh transaction. Anything short of a successful
// commit rolls back.
func (c *Coordinator) attempt(ctx context.Context, actor *model.Actor, fn func(ctx context.Context, s *Session) error) error {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			c.logger.Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
	}()

	if actor != nil {
		if err := verifyActor(ctx, tx, *actor); err != nil {
			return err
		}
	}

	if err := fn(ctx, &Session{Tx: tx, Engine: c.engine, Logger: c.logger, Actor: actor}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// verifyActor checks the asserted identity against storage in the same
// transaction the operation runs in
func verifyActor(ctx context.Context, tx db.Tx, actor model.Actor) error {
	if actor.UserID == "" {
		return apperr.New(apperr.CodeUnauthorized, "no user identity supplied")
	}
	user, err := tx.GetUser(ctx, actor.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.Newf(apperr.CodeUnauthorized, "unknown user %s", actor.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to verify actor: %w", err)
	}
	if !user.IsActive {
		return apperr.Newf(apperr.CodeUnauthorized, "user %s is deactivated", actor.UserID)
	}
	if user.Role != actor.Role {
		return apperr.WithMetadata(apperr.CodeUnauthorized,
			fmt.Sprintf("user %s does not hold role %s", actor.UserID, actor.Role),
			map[string]string{"user_id": actor.UserID, "asserted_role": string(actor.Role)})
	}
	return nil
}
