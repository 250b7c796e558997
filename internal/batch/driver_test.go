// internal/batch/driver_test.go
package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nlavaggi/retex/internal/arca"
)

type fakeExporter struct {
	failCodes map[string]bool
	calls     []string
}

func (f *fakeExporter) ExportOne(ctx context.Context, kind arca.TaxKind, op arca.Operation) (string, error) {
	f.calls = append(f.calls, kind.Code+"/"+op.Value)
	if f.failCodes[kind.Code] {
		return "", errors.New("portal hiccup")
	}
	return "/out/" + kind.Code + "_" + op.Value + ".csv", nil
}

func (f *fakeExporter) NewQuery(ctx context.Context) error { return nil }

func testKinds(t *testing.T, codes ...string) []arca.TaxKind {
	t.Helper()
	kinds := make([]arca.TaxKind, 0, len(codes))
	for _, c := range codes {
		k, err := arca.TaxKindByCode(c)
		require.NoError(t, err)
		kinds = append(kinds, k)
	}
	return kinds
}

func TestDriver(t *testing.T) {
	t.Run("ProcessesEveryOperation", func(t *testing.T) {
		t.Parallel()
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)
		// IMP_219 is ambas_separadas: two queries, retencion first.
		driver := NewDriver(store, testKinds(t, "IMP_216", "IMP_219"), zap.NewNop())

		exp := &fakeExporter{}
		progress := NewProgress("20123456786", "27000000006", "01/01/2024", "31/01/2024")
		require.NoError(t, driver.Run(context.Background(), exp, progress))

		assert.Equal(t, []string{"IMP_216/1", "IMP_219/1", "IMP_219/2"}, exp.calls)
		assert.Equal(t, []string{"IMP_216", "IMP_219"}, progress.CompletedTaxCodes)
		assert.Len(t, progress.DownloadedFiles, 3)
		assert.Equal(t, StatusCompleted, progress.Status)
	})

	t.Run("FailedKindDoesNotSinkTheRest", func(t *testing.T) {
		t.Parallel()
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)
		driver := NewDriver(store, testKinds(t, "IMP_216", "IMP_218", "IMP_939"), zap.NewNop())

		exp := &fakeExporter{failCodes: map[string]bool{"IMP_218": true}}
		progress := NewProgress("20123456786", "27000000006", "01/01/2024", "31/01/2024")
		require.NoError(t, driver.Run(context.Background(), exp, progress))

		// The failing kind is still marked completed (attempted), its file
		// just never lands.
		assert.Equal(t, []string{"IMP_216", "IMP_218", "IMP_939"}, progress.CompletedTaxCodes)
		assert.Len(t, progress.DownloadedFiles, 2)
		assert.Equal(t, StatusCompleted, progress.Status)
	})

	t.Run("ResumeSkipsCompletedKinds", func(t *testing.T) {
		t.Parallel()
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)
		driver := NewDriver(store, testKinds(t, "IMP_216", "IMP_939"), zap.NewNop())

		progress := NewProgress("20123456786", "27000000006", "01/01/2024", "31/01/2024")
		progress.CompletedTaxCodes = []string{"IMP_216"}

		exp := &fakeExporter{}
		require.NoError(t, driver.Run(context.Background(), exp, progress))
		assert.Equal(t, []string{"IMP_939/2"}, exp.calls)
	})

	t.Run("CancellationPreservesCheckpoint", func(t *testing.T) {
		t.Parallel()
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)
		driver := NewDriver(store, testKinds(t, "IMP_216", "IMP_939"), zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		progress := NewProgress("20123456786", "27000000006", "01/01/2024", "31/01/2024")
		require.NoError(t, store.Save(progress))

		err = driver.Run(ctx, &fakeExporter{}, progress)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StatusInProgress, progress.Status)

		// The on-disk checkpoint is still resumable.
		latest, err := store.FindLatest()
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, progress.SessionID, latest.SessionID)
	})
}
