// internal/engine/selector.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Candidate is one ranked strategy for locating a logical UI element.
type Candidate struct {
	// Description identifies the candidate in diagnostics.
	Description string
	// Locator is opaque to the engine; the Page implementation interprets it.
	Locator string
	// Expect is the outcome the candidate is probed for.
	Expect Expectation
}

// Target is an ordered list of mutually exclusive fallback candidates for one
// logical element. Order encodes reliability: most specific first, most
// generic last. Candidates must be fallbacks for the same element, never
// alternatives selecting different ones.
type Target struct {
	Name       string
	Candidates []Candidate
}

// Match records which candidate won a resolution.
type Match struct {
	Candidate Candidate
	Rank      int
}

// Resolver tries a target's candidates in ranked order, each under a short
// per-candidate timeout. Many short probes replace the long single-shot waits
// of the previous design: a present element resolves near-instantly, and a
// short timeout converts "wrong UI state" into fast failure.
type Resolver struct {
	page    Page
	timeout time.Duration
	logger  *zap.Logger
}

// NewResolver creates a Resolver with the given default per-candidate timeout.
func NewResolver(page Page, perCandidate time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		page:    page,
		timeout: perCandidate,
		logger:  logger.Named("selector"),
	}
}

// Resolve probes the target's candidates with the resolver's default timeout.
func (r *Resolver) Resolve(ctx context.Context, target Target) (Match, error) {
	return r.ResolveWithin(ctx, target, r.timeout)
}

// ResolveWithin probes the target's candidates, bounding each probe by
// perCandidate. The first candidate that satisfies its expectation wins.
// Exhausting all candidates yields a SelectorExhaustedError, not a fatal
// error; an abnormal primitive failure yields a ProbeError.
func (r *Resolver) ResolveWithin(ctx context.Context, target Target, perCandidate time.Duration) (Match, error) {
	if len(target.Candidates) == 0 {
		return Match{}, fmt.Errorf("target %q has no candidates", target.Name)
	}

	for rank, cand := range target.Candidates {
		if err := ctx.Err(); err != nil {
			return Match{}, err
		}

		probeCtx, cancel := context.WithTimeout(ctx, perCandidate)
		err := r.page.WaitFor(probeCtx, cand.Locator, cand.Expect)
		cancel()

		if err == nil {
			r.logger.Debug("Candidate matched.",
				zap.String("target", target.Name),
				zap.String("candidate", cand.Description),
				zap.Int("rank", rank))
			return Match{Candidate: cand, Rank: rank}, nil
		}

		// The enclosing context dying is cancellation, not candidate failure.
		if ctx.Err() != nil {
			return Match{}, ctx.Err()
		}

		if errors.Is(err, context.DeadlineExceeded) {
			// Clean timeout: this candidate is absent, try the next one.
			r.logger.Debug("Candidate timed out.",
				zap.String("target", target.Name),
				zap.String("candidate", cand.Description),
				zap.Int("rank", rank))
			continue
		}

		// Anything else means the automation primitive itself failed.
		return Match{}, &ProbeError{Target: target.Name, Candidate: cand.Description, Err: err}
	}

	r.logger.Debug("All candidates exhausted.",
		zap.String("target", target.Name),
		zap.Int("tried", len(target.Candidates)))
	return Match{}, &SelectorExhaustedError{Target: target.Name, Tried: len(target.Candidates)}
}
