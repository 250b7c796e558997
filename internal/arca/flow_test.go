package arca

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nlavaggi/retex/internal/engine"
)

// fakeTab is a scripted Page. Locators in visible resolve, everything else
// times out its probe.
type fakeTab struct {
	mu      sync.Mutex
	visible map[string]bool

	navigations []string
	clicks      []string
	fills       map[string]string

	// onClick runs after each click, letting tests reveal elements in
	// response to navigation.
	onClick func(locator string)
}

func newFakeTab(visible ...string) *fakeTab {
	tab := &fakeTab{visible: make(map[string]bool), fills: make(map[string]string)}
	for _, l := range visible {
		tab.visible[l] = true
	}
	return tab
}

func (f *fakeTab) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, url)
	return nil
}

func (f *fakeTab) WaitFor(ctx context.Context, locator string, _ engine.Expectation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visible[locator] {
		return nil
	}
	return context.DeadlineExceeded
}

func (f *fakeTab) Click(ctx context.Context, locator string) error {
	f.mu.Lock()
	f.clicks = append(f.clicks, locator)
	hook := f.onClick
	f.mu.Unlock()
	if hook != nil {
		hook(locator)
	}
	return nil
}

func (f *fakeTab) ClearAndFill(ctx context.Context, locator, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills[locator] = value
	return nil
}

func (f *fakeTab) Press(ctx context.Context, key engine.Key) error { return nil }

func (f *fakeTab) Text(ctx context.Context, locator string) (string, error) { return "", nil }

func (f *fakeTab) Value(ctx context.Context, locator string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fills[locator], nil
}

func (f *fakeTab) clicked(locator string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clicks {
		if c == locator {
			return true
		}
	}
	return false
}

func newTestPortal(tab *fakeTab, logger *zap.Logger) *Portal {
	resolver := engine.NewResolver(tab, 10*time.Millisecond, logger)
	return NewPortal(tab, resolver, "", 0, logger)
}

func TestPortalLogin(t *testing.T) {
	t.Run("FillsCredentialsInOrder", func(t *testing.T) {
		t.Parallel()
		tab := newFakeTab(`#F1\:username`, `#F1\:btnSiguiente`, `#F1\:password`, `#F1\:btnIngresar`)

		err := newTestPortal(tab, zap.NewNop()).Login(context.Background(), "20123456786", "secreta")
		require.NoError(t, err)

		assert.Equal(t, []string{LoginURL}, tab.navigations)
		assert.Equal(t, "20123456786", tab.fills[`#F1\:username`])
		assert.Equal(t, "secreta", tab.fills[`#F1\:password`])
		assert.True(t, tab.clicked(`#F1\:btnSiguiente`))
		assert.True(t, tab.clicked(`#F1\:btnIngresar`))
	})

	t.Run("ClaveNeverLogged", func(t *testing.T) {
		t.Parallel()
		core, logs := observer.New(zap.DebugLevel)
		tab := newFakeTab(`#F1\:username`, `#F1\:btnSiguiente`, `#F1\:password`, `#F1\:btnIngresar`)

		err := newTestPortal(tab, zap.New(core)).Login(context.Background(), "20123456786", "clave-super-secreta")
		require.NoError(t, err)

		for _, entry := range logs.All() {
			assert.NotContains(t, entry.Message, "clave-super-secreta")
			for _, field := range entry.Context {
				assert.NotContains(t, field.String, "clave-super-secreta")
			}
		}
	})

	t.Run("InvalidCUITRejectedBeforeNavigation", func(t *testing.T) {
		t.Parallel()
		tab := newFakeTab()

		err := newTestPortal(tab, zap.NewNop()).Login(context.Background(), "20123456780", "clave")
		require.Error(t, err)
		assert.Empty(t, tab.navigations)
	})

	t.Run("EmptyClaveRejected", func(t *testing.T) {
		t.Parallel()
		tab := newFakeTab()
		err := newTestPortal(tab, zap.NewNop()).Login(context.Background(), "20123456786", "")
		assert.Error(t, err)
	})
}

func TestPortalOpenService(t *testing.T) {
	t.Run("TileOnHome", func(t *testing.T) {
		t.Parallel()
		tab := newFakeTab(`a[title='mis_retenciones']`)

		require.NoError(t, newTestPortal(tab, zap.NewNop()).OpenService(context.Background()))
		assert.True(t, tab.clicked(`a[title='mis_retenciones']`))
	})

	t.Run("TileBehindVerTodos", func(t *testing.T) {
		t.Parallel()
		// The tile only appears once the full service list is expanded.
		tab := newFakeTab(`//a[contains(., 'Ver todos')]`)
		tab.onClick = func(locator string) {
			if locator == `//a[contains(., 'Ver todos')]` {
				tab.mu.Lock()
				tab.visible[`a[title='mis_retenciones']`] = true
				tab.mu.Unlock()
			}
		}

		portal := newTestPortal(tab, zap.NewNop())
		require.NoError(t, portal.OpenService(context.Background()))
		assert.True(t, tab.clicked(`//a[contains(., 'Ver todos')]`))
		assert.True(t, tab.clicked(`a[title='mis_retenciones']`))
	})

	t.Run("NothingFoundIsError", func(t *testing.T) {
		t.Parallel()
		tab := newFakeTab()
		err := newTestPortal(tab, zap.NewNop()).OpenService(context.Background())
		require.Error(t, err)
	})
}

func TestPortalSelectRepresentado(t *testing.T) {
	t.Run("AbsentChooserKeepsDefault", func(t *testing.T) {
		t.Parallel()
		tab := newFakeTab()
		err := newTestPortal(tab, zap.NewNop()).SelectRepresentado(context.Background(), "20123456786")
		assert.NoError(t, err)
	})

	t.Run("CardClickedWhenPresent", func(t *testing.T) {
		t.Parallel()
		card := `//h6[contains(@class,'e-relation__text--cuit')][contains(., '20-12345678-6')]/ancestor::div[contains(@class,'e-relation__card')]`
		tab := newFakeTab(
			`#e-navbar-dropdown-toggle`,
			`#navBarMisRetenciones-dropdown-changeRelation`,
			card,
		)

		err := newTestPortal(tab, zap.NewNop()).SelectRepresentado(context.Background(), "20123456786")
		require.NoError(t, err)
		assert.True(t, tab.clicked(card))
	})

	t.Run("MissingCardKeepsDefaultWithWarning", func(t *testing.T) {
		t.Parallel()
		core, logs := observer.New(zap.WarnLevel)
		tab := newFakeTab(
			`#e-navbar-dropdown-toggle`,
			`#navBarMisRetenciones-dropdown-changeRelation`,
		)

		err := newTestPortal(tab, zap.New(core)).SelectRepresentado(context.Background(), "20123456786")
		require.NoError(t, err)
		require.NotEmpty(t, logs.All())
	})
}

func TestPortalPrepareQuery(t *testing.T) {
	sicore, err := TaxKindByCode("IMP_217")
	require.NoError(t, err)
	aduanera, err := TaxKindByCode("ADU_217")
	require.NoError(t, err)

	t.Run("TaxAndOperationSelected", func(t *testing.T) {
		t.Parallel()
		tab := newFakeTab(
			`#selectImpuestos`,
			`#selectImpuestos-multiselect-option-IMP_217`,
			`input[type='radio'][value='0']`,
		)

		err := newTestPortal(tab, zap.NewNop()).PrepareQuery(context.Background(), sicore, sicore.Operations()[0])
		require.NoError(t, err)
		assert.True(t, tab.clicked(`#selectImpuestos-multiselect-option-IMP_217`))
		assert.True(t, tab.clicked(`input[type='radio'][value='0']`))
	})

	t.Run("NoRadioForFechaSolo", func(t *testing.T) {
		t.Parallel()
		tab := newFakeTab(
			`#selectImpuestos`,
			`#selectImpuestos-multiselect-option-ADU_217`,
		)

		err := newTestPortal(tab, zap.NewNop()).PrepareQuery(context.Background(), aduanera, aduanera.Operations()[0])
		require.NoError(t, err)
		for _, c := range tab.clicks {
			assert.False(t, strings.Contains(c, "radio"), "unexpected radio click %s", c)
		}
	})

	t.Run("AbsentRadioTolerated", func(t *testing.T) {
		t.Parallel()
		tab := newFakeTab(
			`#selectImpuestos`,
			`#selectImpuestos-multiselect-option-IMP_217`,
		)

		err := newTestPortal(tab, zap.NewNop()).PrepareQuery(context.Background(), sicore, sicore.Operations()[0])
		assert.NoError(t, err)
	})
}

func TestPortalConsultar(t *testing.T) {
	t.Run("WaitsForResultsToolbar", func(t *testing.T) {
		t.Parallel()
		tab := newFakeTab(`#btnConsultarRetenciones`, `#btnExportarOtrosFormatos`)

		require.NoError(t, newTestPortal(tab, zap.NewNop()).Consultar(context.Background()))
		assert.True(t, tab.clicked(`#btnConsultarRetenciones`))
	})

	t.Run("MissingResultsIsError", func(t *testing.T) {
		t.Parallel()
		tab := newFakeTab(`#btnConsultarRetenciones`)

		err := newTestPortal(tab, zap.NewNop()).Consultar(context.Background())
		require.Error(t, err)
	})
}
