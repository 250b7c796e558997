// internal/engine/selector_test.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankedTarget(n int) Target {
	t := Target{Name: "ranked"}
	for i := 0; i < n; i++ {
		t.Candidates = append(t.Candidates, Candidate{
			Description: fmt.Sprintf("candidate-%d", i),
			Locator:     fmt.Sprintf("#cand-%d", i),
			Expect:      ExpectVisible,
		})
	}
	return t
}

func TestResolver(t *testing.T) {
	t.Run("FirstCandidateWins", func(t *testing.T) {
		t.Parallel()
		page := newFakePage()
		page.setVisible("#cand-0", "#cand-2")

		match, err := newTestResolver(page).Resolve(context.Background(), rankedTarget(3))
		require.NoError(t, err)
		assert.Equal(t, 0, match.Rank)
		assert.Equal(t, "candidate-0", match.Candidate.Description)
	})

	t.Run("HigherRankNeverSkipped", func(t *testing.T) {
		t.Parallel()
		// For every subset of present candidates, the lowest-ranked present
		// one must win. 3 candidates, all 8 presence combinations.
		target := rankedTarget(3)
		for mask := 0; mask < 8; mask++ {
			page := newFakePage()
			want := -1
			for i := 0; i < 3; i++ {
				if mask&(1<<i) != 0 {
					page.setVisible(fmt.Sprintf("#cand-%d", i))
					if want == -1 {
						want = i
					}
				}
			}

			match, err := newTestResolver(page).Resolve(context.Background(), target)
			if want == -1 {
				assert.True(t, IsNotFound(err), "mask %03b: expected exhaustion", mask)
				continue
			}
			require.NoError(t, err, "mask %03b", mask)
			assert.Equal(t, want, match.Rank, "mask %03b", mask)
		}
	})

	t.Run("ExhaustionIsNotFound", func(t *testing.T) {
		t.Parallel()
		page := newFakePage()

		_, err := newTestResolver(page).Resolve(context.Background(), rankedTarget(4))
		require.Error(t, err)
		assert.True(t, IsNotFound(err))

		var exhausted *SelectorExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 4, exhausted.Tried)
		assert.Equal(t, "ranked", exhausted.Target)
	})

	t.Run("AbnormalFailureIsProbeError", func(t *testing.T) {
		t.Parallel()
		page := newFakePage()
		boom := errors.New("target crashed")
		page.errs["#cand-1"] = boom

		_, err := newTestResolver(page).Resolve(context.Background(), rankedTarget(3))
		require.Error(t, err)
		assert.False(t, IsNotFound(err))

		var probe *ProbeError
		require.ErrorAs(t, err, &probe)
		assert.Equal(t, "candidate-1", probe.Candidate)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("CanceledContextPropagates", func(t *testing.T) {
		t.Parallel()
		page := newFakePage()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestResolver(page).Resolve(ctx, rankedTarget(2))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("EmptyTargetRejected", func(t *testing.T) {
		t.Parallel()
		page := newFakePage()

		_, err := newTestResolver(page).Resolve(context.Background(), Target{Name: "empty"})
		assert.Error(t, err)
	})
}
