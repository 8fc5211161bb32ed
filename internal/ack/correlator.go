package ack

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
)

// OutcomeKind classifies how a pending wait resolved.
type OutcomeKind int

const (
	// OutcomeSuccess: every required peer acked processed.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailure: a required peer acked failed; remaining peers were
	// not waited for.
	OutcomeFailure
	// OutcomeTimeout: the deadline elapsed before quorum.
	OutcomeTimeout
)

// Outcome is the result of waiting for acknowledgment quorum.
type Outcome struct {
	Kind OutcomeKind

	// FailedPeer and FailureMessage are set when Kind is OutcomeFailure.
	FailedPeer     string
	FailureMessage string

	// MissingPeers lists peers that never acked, set when Kind is
	// OutcomeTimeout.
	MissingPeers []string
}

// Err translates the outcome into the error taxonomy: nil for success,
// SagaFailureError for a peer failure, SagaTimeoutError for a timeout.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeFailure:
		return apperrors.SagaFailure(o.FailedPeer, o.FailureMessage)
	case OutcomeTimeout:
		return apperrors.SagaTimeout(o.MissingPeers)
	default:
		return nil
	}
}

// Correlator matches acknowledgments arriving on the shared ack topic with
// callers waiting for quorum from a set of named peers.
type Correlator struct {
	bus    eventbus.Bus
	logger *slog.Logger
}

// NewCorrelator creates a correlator bound to the given bus.
func NewCorrelator(bus eventbus.Bus, logger *slog.Logger) *Correlator {
	return &Correlator{bus: bus, logger: logger}
}

// Pending is an open wait for acknowledgment quorum. The ack subscription is
// live from the moment Expect returns, so acks arriving before Wait is
// called are not lost.
type Pending struct {
	correlationID string
	required      map[string]struct{}
	sub           eventbus.Subscription

	mu       sync.Mutex
	acked    map[string]struct{}
	resolved bool
	outcome  Outcome
	done     chan struct{}
}

// Expect subscribes for acks matching correlationID from the given peers.
// The caller must publish the triggering event only after Expect returns,
// and must always call Wait to release the subscription.
func (c *Correlator) Expect(correlationID string, peers []string) (*Pending, error) {
	required := make(map[string]struct{}, len(peers))
	for _, peer := range peers {
		required[peer] = struct{}{}
	}

	p := &Pending{
		correlationID: correlationID,
		required:      required,
		acked:         make(map[string]struct{}, len(peers)),
		done:          make(chan struct{}),
	}

	sub, err := c.bus.Subscribe(Topic, func(ctx context.Context, event *eventbus.Event) error {
		var a Ack
		if err := event.DecodePayload(&a); err != nil {
			c.logger.WarnContext(ctx, "discarding malformed ack",
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		p.observe(a)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.sub = sub
	return p, nil
}

// observe applies one inbound ack. Acks for other correlation ids or from
// peers outside the required set are discarded. The first ack per peer wins:
// duplicates are ignored and a recorded success never flips to failure.
func (p *Pending) observe(a Ack) {
	if a.OriginalEventID != p.correlationID {
		return
	}
	if _, required := p.required[a.Service]; !required {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resolved {
		return
	}
	if _, seen := p.acked[a.Service]; seen {
		return
	}

	if a.Status == StatusFailed {
		p.outcome = Outcome{
			Kind:           OutcomeFailure,
			FailedPeer:     a.Service,
			FailureMessage: a.Error,
		}
		p.resolved = true
		close(p.done)
		return
	}

	p.acked[a.Service] = struct{}{}
	if len(p.acked) == len(p.required) {
		p.outcome = Outcome{Kind: OutcomeSuccess}
		p.resolved = true
		close(p.done)
	}
}

// Wait blocks until quorum, peer failure, the timeout, or context
// cancellation. The subscription is torn down on every path; Wait must be
// called exactly once.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) Outcome {
	defer func() { _ = p.sub.Unsubscribe() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.outcome
	case <-timer.C:
	case <-ctx.Done():
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// An ack may have resolved us between the timer firing and taking the
	// lock; prefer the real outcome.
	if p.resolved {
		return p.outcome
	}

	p.resolved = true
	p.outcome = Outcome{Kind: OutcomeTimeout, MissingPeers: p.missingLocked()}
	return p.outcome
}

func (p *Pending) missingLocked() []string {
	missing := make([]string, 0, len(p.required))
	for peer := range p.required {
		if _, ok := p.acked[peer]; !ok {
			missing = append(missing, peer)
		}
	}
	sort.Strings(missing)
	return missing
}

// AwaitAcks subscribes, waits, and maps the outcome to an error. Callers
// that need to publish between subscribing and waiting use Expect/Wait
// directly.
func (c *Correlator) AwaitAcks(ctx context.Context, correlationID string, peers []string, timeout time.Duration) error {
	p, err := c.Expect(correlationID, peers)
	if err != nil {
		return err
	}
	return p.Wait(ctx, timeout).Err()
}
