// internal/engine/variant.go
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// UIVariant is which of the two known post-export UI behaviors the portal
// exhibited. Determined once per export cycle and immutable afterwards; it is
// threaded through the orchestrator, never a shared flag.
type UIVariant int

const (
	// VariantUnknown means the probe failed abnormally. Valid only as a
	// terminal outcome accompanying a VariantIndeterminateError.
	VariantUnknown UIVariant = iota
	// VariantModalConfirmed means the legacy confirmation modal appeared.
	VariantModalConfirmed
	// VariantSilentExport means no modal appeared within the probe bound;
	// the export proceeds asynchronously server-side.
	VariantSilentExport
)

func (v UIVariant) String() string {
	switch v {
	case VariantModalConfirmed:
		return "modal-confirmed"
	case VariantSilentExport:
		return "silent-export"
	default:
		return "unknown"
	}
}

// VariantDetector decides which post-export UI variant is active via a single
// short bounded probe for the modal's root container.
type VariantDetector struct {
	resolver *Resolver
	bound    time.Duration
	logger   *zap.Logger
}

// NewVariantDetector creates a detector whose probe is bounded by bound.
func NewVariantDetector(resolver *Resolver, bound time.Duration, logger *zap.Logger) *VariantDetector {
	return &VariantDetector{
		resolver: resolver,
		bound:    bound,
		logger:   logger.Named("variant"),
	}
}

// Detect probes for the modal root. Found means VariantModalConfirmed. A clean
// timeout is positive evidence of the new silent behavior, not an error: the
// new UI never raises the modal at all. Only an abnormal probe failure yields
// VariantUnknown, with a VariantIndeterminateError the caller must treat as
// fatal.
//
// The bound is the total budget for the whole probe, however many fallback
// candidates the modal target carries. The silent verdict must arrive within
// one bound, not one bound per candidate.
func (d *VariantDetector) Detect(ctx context.Context, modalRoot Target) (UIVariant, error) {
	probeCtx, cancel := context.WithTimeout(ctx, d.bound)
	defer cancel()

	match, err := d.resolver.ResolveWithin(probeCtx, modalRoot, d.bound)
	switch {
	case err == nil:
		d.logger.Info("Export confirmation modal detected.",
			zap.String("candidate", match.Candidate.Description))
		return VariantModalConfirmed, nil
	case ctx.Err() != nil:
		// The caller's context dying is cancellation, never a clean verdict.
		return VariantUnknown, &VariantIndeterminateError{Err: ctx.Err()}
	case IsNotFound(err) || errors.Is(err, context.DeadlineExceeded):
		d.logger.Info("No modal within probe bound; silent export confirmed.",
			zap.Duration("bound", d.bound))
		return VariantSilentExport, nil
	default:
		return VariantUnknown, &VariantIndeterminateError{Err: err}
	}
}
