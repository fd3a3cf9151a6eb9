package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aqualife-vn/backend-aqualife/internal/obs"
)

// Phase enumerates the observable states of one checkout attempt.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseProcessing Phase = "PROCESSING"
	PhaseReady      Phase = "READY"
	PhaseError      Phase = "ERROR"
	// PhaseExpired is reported for a Ready artifact whose payment window
	// has closed. The lifecycle never schedules a timer for this; it is
	// derived at read time so an expired artifact can no longer be
	// presented as payable.
	PhaseExpired Phase = "EXPIRED"
)

// State is a copy of the lifecycle's observable value. Exactly one state is
// observable at any time.
type State struct {
	Phase    Phase            `json:"phase"`
	Artifact *PayableArtifact `json:"artifact,omitempty"`
	Code     ErrorCode        `json:"code,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// AttemptRecorder persists successful attempts. Optional; the lifecycle
// works without persistence.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

// Lifecycle orchestrates one checkout attempt: validate, dispatch to the
// provider for the chosen method, and expose the outcome as a single
// observable state. All writes happen under one mutex (single-writer
// discipline); readers receive copies.
type Lifecycle struct {
	Providers map[Method]Provider
	Attempts  AttemptRecorder
	Logger    zerolog.Logger
	Now       func() time.Time

	mu       sync.Mutex
	state    State
	inFlight bool
}

// NewLifecycle wires a lifecycle in the Idle state.
func NewLifecycle(providers map[Method]Provider, attempts AttemptRecorder, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		Providers: providers,
		Attempts:  attempts,
		Logger:    logger,
		state:     State{Phase: PhaseIdle},
	}
}

// Initiate validates the checkout input and drives the provider call. The
// returned state is the value observable when the call finishes.
//
// While a request is in flight any further Initiate is a no-op returning
// the current state; this is what stops a double-tapped pay button from
// creating two orders.
func (l *Lifecycle) Initiate(ctx context.Context, req CheckoutRequest, method Method) State {
	ctx, span := otel.Tracer("payment.Lifecycle").Start(ctx, "Lifecycle.Initiate",
		trace.WithAttributes(attribute.String("payment.method", string(method))))
	defer span.End()

	l.mu.Lock()
	if l.inFlight {
		current := l.state
		l.mu.Unlock()
		l.Logger.Warn().Str("method", string(method)).Msg("initiate ignored: request in flight")
		return current
	}
	if err := req.Validate(); err != nil {
		st := stateFromError(err)
		l.state = st
		l.mu.Unlock()
		l.observe(span, string(method), "validation_error", 0)
		return st
	}
	l.inFlight = true
	l.state = State{Phase: PhaseProcessing}
	l.mu.Unlock()

	start := l.now()
	artifact, err := l.dispatch(ctx, req, method)

	l.mu.Lock()
	l.inFlight = false
	var final State
	if err != nil {
		final = stateFromError(err)
	} else {
		a := artifact
		final = State{Phase: PhaseReady, Artifact: &a}
	}
	l.state = final
	l.mu.Unlock()

	elapsed := l.now().Sub(start)
	if err != nil {
		span.RecordError(err)
		l.observe(span, string(method), string(CodeOf(err)), elapsed)
		l.Logger.Error().Err(err).
			Str("method", string(method)).
			Str("code", string(CodeOf(err))).
			Dur("elapsed", elapsed).
			Msg("payment initiate failed")
		return final
	}
	l.observe(span, string(method), "ready", elapsed)
	l.Logger.Info().
		Str("method", string(method)).
		Str("order_id", artifact.OrderID).
		Int64("amount", req.Amount).
		Time("expires_at", artifact.ExpiresAt).
		Dur("elapsed", elapsed).
		Msg("payment artifact ready")

	if l.Attempts != nil {
		if recErr := l.Attempts.RecordAttempt(ctx, AttemptFromArtifact(artifact, req.Amount)); recErr != nil {
			l.Logger.Error().Err(recErr).Str("order_id", artifact.OrderID).Msg("record payment attempt")
		}
	}
	return final
}

func (l *Lifecycle) dispatch(ctx context.Context, req CheckoutRequest, method Method) (PayableArtifact, error) {
	provider, ok := l.Providers[method]
	if !ok {
		return PayableArtifact{}, unsupported("Phương thức thanh toán chưa được hỗ trợ.")
	}
	artifact, err := provider.CreatePayment(ctx, req)
	if err != nil {
		var pe *Error
		if !errors.As(err, &pe) {
			// Adapter leaked a raw error; classify as network so the
			// client is offered a retry.
			err = networkError(err)
		}
		return PayableArtifact{}, err
	}
	return artifact, nil
}

// Snapshot returns the current observable state. A Ready artifact past its
// deadline is reported as Expired.
func (l *Lifecycle) Snapshot() State {
	l.mu.Lock()
	st := l.state
	l.mu.Unlock()
	if st.Phase == PhaseReady && st.Artifact != nil && st.Artifact.Expired(l.now()) {
		a := *st.Artifact
		return State{Phase: PhaseExpired, Artifact: &a}
	}
	return st
}

// Confirmable reports whether the current artifact may still be presented
// as payable.
func (l *Lifecycle) Confirmable() bool {
	return l.Snapshot().Phase == PhaseReady
}

// Reset returns the lifecycle to Idle from any settled state. A reset
// during Processing is refused so an in-flight provider call cannot leak
// its result into a fresh attempt.
func (l *Lifecycle) Reset() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight {
		return false
	}
	l.state = State{Phase: PhaseIdle}
	return true
}

func (l *Lifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Lifecycle) observe(span trace.Span, method, result string, elapsed time.Duration) {
	span.SetAttributes(
		attribute.String("payment.result", result),
		attribute.Float64("payment.duration_ms", obs.DurationMillis(elapsed)),
	)
	if obs.PaymentIntentTotal != nil {
		obs.PaymentIntentTotal.WithLabelValues(method, result).Inc()
	}
}

func stateFromError(err error) State {
	var pe *Error
	if errors.As(err, &pe) {
		return State{Phase: PhaseError, Code: pe.Code, Message: pe.Message}
	}
	return State{Phase: PhaseError, Code: CodeNetwork, Message: err.Error()}
}
