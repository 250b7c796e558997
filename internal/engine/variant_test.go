// internal/engine/variant_test.go
package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var modalTarget = Target{
	Name: "export-modal",
	Candidates: []Candidate{
		{Description: "modal root by id", Locator: "#modal-root", Expect: ExpectVisible},
		{Description: "visible modal", Locator: ".modal.show", Expect: ExpectVisible},
	},
}

func newTestDetector(p Page, bound time.Duration) *VariantDetector {
	return NewVariantDetector(newTestResolver(p), bound, testLogger())
}

// stallingPage blocks every probe until its deadline expires.
type stallingPage struct {
	*fakePage
}

func (p *stallingPage) WaitFor(ctx context.Context, locator string, _ Expectation) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestVariantDetector(t *testing.T) {
	t.Run("ModalPresentConfirmsModalVariant", func(t *testing.T) {
		t.Parallel()
		page := newFakePage()
		page.setVisible("#modal-root")

		// Any bound at or above the minimum probe must report the modal.
		for _, bound := range []time.Duration{time.Millisecond, 50 * time.Millisecond, 3 * time.Second} {
			v, err := newTestDetector(page, bound).Detect(context.Background(), modalTarget)
			require.NoError(t, err)
			assert.Equal(t, VariantModalConfirmed, v)
		}
	})

	t.Run("CleanTimeoutMeansSilentExport", func(t *testing.T) {
		t.Parallel()
		// No modal locator ever resolves: the timeout is positive evidence
		// of the silent behavior, not an error.
		page := newFakePage()

		v, err := newTestDetector(page, time.Millisecond).Detect(context.Background(), modalTarget)
		require.NoError(t, err)
		assert.Equal(t, VariantSilentExport, v)
	})

	t.Run("AbnormalProbeIsIndeterminate", func(t *testing.T) {
		t.Parallel()
		page := newFakePage()
		page.errs["#modal-root"] = errors.New("websocket: close 1006")

		v, err := newTestDetector(page, time.Millisecond).Detect(context.Background(), modalTarget)
		assert.Equal(t, VariantUnknown, v)

		var indeterminate *VariantIndeterminateError
		require.ErrorAs(t, err, &indeterminate)
	})

	t.Run("SilentVerdictBoundedAcrossManyCandidates", func(t *testing.T) {
		t.Parallel()
		// Every probe consumes its full deadline, the way a real bounded wait
		// behaves for an element that never appears. The silent verdict must
		// still arrive within one bound, however long the fallback chain is.
		page := &stallingPage{newFakePage()}
		wide := Target{
			Name: "export-modal",
			Candidates: []Candidate{
				{Description: "modal root by id", Locator: "#modal-root", Expect: ExpectVisible},
				{Description: "modal content by id", Locator: "#modal-content", Expect: ExpectVisible},
				{Description: "visible modal", Locator: ".modal.show", Expect: ExpectVisible},
				{Description: "generic modal content", Locator: ".modal-content", Expect: ExpectVisible},
			},
		}

		bound := 50 * time.Millisecond
		start := time.Now()
		v, err := newTestDetector(page, bound).Detect(context.Background(), wide)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, VariantSilentExport, v)
		assert.Less(t, elapsed, 2*bound)
	})

	t.Run("CancellationIsIndeterminateNotSilent", func(t *testing.T) {
		t.Parallel()
		page := newFakePage()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		v, err := newTestDetector(page, time.Millisecond).Detect(ctx, modalTarget)
		assert.Equal(t, VariantUnknown, v)
		require.Error(t, err)

		var indeterminate *VariantIndeterminateError
		assert.ErrorAs(t, err, &indeterminate)
	})
}
