package arca

import (
	"time"

	"github.com/nlavaggi/retex/internal/engine"
)

// Every selector the service's fragile front end has required so far lives
// here as ranked candidate data. A markup change means appending a fallback
// row, not touching flow code. Locators starting with "//" are XPath, the
// rest are CSS.

// LoginURL is the portal's credential entry point.
const LoginURL = "https://auth.afip.gob.ar/contribuyente_/login.xhtml"

// FinishedToken is the status-cell text marking a completed export.
const FinishedToken = "Finalizado"

var (
	loginUser = engine.Target{Name: "login-cuit", Candidates: []engine.Candidate{
		{Description: "cuit input by id", Locator: `#F1\:username`, Expect: engine.ExpectVisible},
		{Description: "cuit input by name", Locator: `input[name='F1:username']`, Expect: engine.ExpectVisible},
	}}
	loginNext = engine.Target{Name: "login-siguiente", Candidates: []engine.Candidate{
		{Description: "siguiente by id", Locator: `#F1\:btnSiguiente`, Expect: engine.ExpectClickable},
	}}
	loginPassword = engine.Target{Name: "login-clave", Candidates: []engine.Candidate{
		{Description: "clave input by id", Locator: `#F1\:password`, Expect: engine.ExpectVisible},
		{Description: "clave input by name", Locator: `input[name='F1:password']`, Expect: engine.ExpectVisible},
	}}
	loginSubmit = engine.Target{Name: "login-ingresar", Candidates: []engine.Candidate{
		{Description: "ingresar by id", Locator: `#F1\:btnIngresar`, Expect: engine.ExpectClickable},
	}}

	serviceTile = engine.Target{Name: "mis-retenciones-tile", Candidates: []engine.Candidate{
		{Description: "tile anchor by title", Locator: `a[title='mis_retenciones']`, Expect: engine.ExpectVisible},
		{Description: "tile heading by text", Locator: `//h3[contains(@class,'roboto-font')][contains(., 'MIS RETENCIONES')]`, Expect: engine.ExpectVisible},
		{Description: "anchor wrapping heading", Locator: `//a[.//h3[contains(., 'MIS RETENCIONES')]]`, Expect: engine.ExpectVisible},
	}}
	verTodos = engine.Target{Name: "ver-todos", Candidates: []engine.Candidate{
		{Description: "ver todos by text", Locator: `//a[contains(., 'Ver todos')]`, Expect: engine.ExpectVisible},
		{Description: "mis servicios href", Locator: `a[href*='mis-servicios']`, Expect: engine.ExpectVisible},
	}}

	userMenu = engine.Target{Name: "user-menu", Candidates: []engine.Candidate{
		{Description: "navbar dropdown toggle", Locator: `#e-navbar-dropdown-toggle`, Expect: engine.ExpectClickable},
		{Description: "any dropdown toggle anchor", Locator: `a[data-bs-toggle='dropdown']`, Expect: engine.ExpectClickable},
	}}
	changeRelation = engine.Target{Name: "change-relation", Candidates: []engine.Candidate{
		{Description: "change relation by id", Locator: `#navBarMisRetenciones-dropdown-changeRelation`, Expect: engine.ExpectClickable},
		{Description: "change relation id fragment", Locator: `a[id*='dropdown-changeRelation']`, Expect: engine.ExpectClickable},
	}}

	taxSelect = engine.Target{Name: "select-impuestos", Candidates: []engine.Candidate{
		{Description: "multiselect by id", Locator: `#selectImpuestos`, Expect: engine.ExpectVisible},
		{Description: "multiselect input", Locator: `input#selectImpuestos`, Expect: engine.ExpectVisible},
	}}
	consultar = engine.Target{Name: "consultar", Candidates: []engine.Candidate{
		{Description: "consultar by id", Locator: `#btnConsultarRetenciones`, Expect: engine.ExpectClickable},
		{Description: "consultar button element", Locator: `button#btnConsultarRetenciones`, Expect: engine.ExpectClickable},
	}}
	resultsReady = engine.Target{Name: "results-ready", Candidates: []engine.Candidate{
		{Description: "export button by id", Locator: `#btnExportarOtrosFormatos`, Expect: engine.ExpectVisible},
		{Description: "export button element", Locator: `button#btnExportarOtrosFormatos`, Expect: engine.ExpectVisible},
	}}

	exportMenu = engine.Target{Name: "export-menu", Candidates: []engine.Candidate{
		{Description: "export dropdown by id", Locator: `#btnExportarOtrosFormatos`, Expect: engine.ExpectClickable},
		{Description: "export dropdown element", Locator: `button#btnExportarOtrosFormatos`, Expect: engine.ExpectClickable},
	}}
	exportCSV = engine.Target{Name: "export-csv", Candidates: []engine.Candidate{
		{Description: "csv item by text", Locator: `//*[contains(@class,'dropdown-menu')]//a[contains(@class,'dropdown-item')][contains(., '.CSV')]`, Expect: engine.ExpectClickable},
		{Description: "any csv dropdown item", Locator: `//a[contains(@class,'dropdown-item')][contains(., '.CSV')]`, Expect: engine.ExpectClickable},
	}}

	exportModal = engine.Target{Name: "export-modal", Candidates: []engine.Candidate{
		{Description: "modal root by id", Locator: `#modal-sinresultados`, Expect: engine.ExpectVisible},
		{Description: "modal content by id", Locator: `#modal-sinresultados_content`, Expect: engine.ExpectVisible},
		{Description: "visible bootstrap modal", Locator: `.modal.show`, Expect: engine.ExpectVisible},
		{Description: "generic modal content", Locator: `.modal-content`, Expect: engine.ExpectVisible},
	}}
	viewFile = engine.Target{Name: "ver-archivo", Candidates: []engine.Candidate{
		{Description: "modal ok by id", Locator: `#modal-sinresultados_btnOK`, Expect: engine.ExpectClickable},
		{Description: "primary button in modal footer", Locator: `#modal-sinresultados_footer button.btn-primary`, Expect: engine.ExpectClickable},
		{Description: "primary button in modal", Locator: `#modal-sinresultados button.btn-primary`, Expect: engine.ExpectClickable},
		{Description: "primary button in any modal", Locator: `.modal-content button.btn-primary`, Expect: engine.ExpectClickable},
		{Description: "ver archivo by text", Locator: `//button[contains(., 'Ver archivo')]`, Expect: engine.ExpectClickable},
	}}
	exportedTab = engine.Target{Name: "consultas-exportadas", Candidates: []engine.Candidate{
		{Description: "tab by id", Locator: `#tabConsultasExportdas-tab`, Expect: engine.ExpectClickable},
		{Description: "tab by aria-controls", Locator: `button[aria-controls='tabConsultasExportdas']`, Expect: engine.ExpectClickable},
		{Description: "tab button by text", Locator: `//button[contains(., 'Consultas exportadas')]`, Expect: engine.ExpectClickable},
		{Description: "tab anchor by text", Locator: `//a[contains(., 'Consultas exportadas')]`, Expect: engine.ExpectClickable},
	}}
	nuevaConsultaTab = engine.Target{Name: "nueva-consulta", Candidates: []engine.Candidate{
		{Description: "tab by id", Locator: `#tabNuevaConsulta-tab`, Expect: engine.ExpectClickable},
		{Description: "tab by aria-controls", Locator: `button[aria-controls='tabNuevaConsulta']`, Expect: engine.ExpectClickable},
	}}
	refreshTable = engine.Target{Name: "recargar-tabla", Candidates: []engine.Candidate{
		{Description: "reload by id", Locator: `#btnRecargarTablaAplicativo`, Expect: engine.ExpectClickable},
		{Description: "reload button element", Locator: `button#btnRecargarTablaAplicativo`, Expect: engine.ExpectClickable},
	}}
)

// firstRowLocators reads the most recent exported-queries entry, ag-grid
// row-index 0. The alternates reach the same cells through XPath in case the
// grid wraps cell content differently.
var firstRowLocators = engine.RowLocators{
	Row: `.ag-row[row-index="0"]`,
	Filter: engine.CellLocators{
		Primary:   `.ag-row[row-index="0"] [col-id="filtros"]`,
		Alternate: `//div[contains(@class,'ag-row') and @row-index='0']//*[@col-id='filtros']`,
	},
	Status: engine.CellLocators{
		Primary:   `.ag-row[row-index="0"] [col-id="estado"]`,
		Alternate: `//div[contains(@class,'ag-row') and @row-index='0']//*[@col-id='estado']`,
	},
	Timestamp: engine.CellLocators{
		Primary:   `.ag-row[row-index="0"] [col-id="fechaTimestamp"]`,
		Alternate: `//div[contains(@class,'ag-row') and @row-index='0']//*[@col-id='fechaTimestamp']`,
	},
	DownloadTrigger: `.ag-row[row-index="0"] a[download] button`,
}

func dateFields(r DateRange) []engine.FieldSpec {
	return []engine.FieldSpec{
		{
			Name: "fecha_desde",
			Target: engine.Target{Name: "fecha_desde", Candidates: []engine.Candidate{
				{Description: "desde input by id", Locator: `#datePickerFechasRetencionesDesde__input`, Expect: engine.ExpectVisible},
				{Description: "desde input by id fragment", Locator: `input[id*='FechasRetencionesDesde']`, Expect: engine.ExpectVisible},
			}},
			Value:   r.Desde,
			Dismiss: engine.KeyEscape,
		},
		{
			Name: "fecha_hasta",
			Target: engine.Target{Name: "fecha_hasta", Candidates: []engine.Candidate{
				{Description: "hasta input by id", Locator: `#datePickerFechasRetencionesHasta__input`, Expect: engine.ExpectVisible},
				{Description: "hasta input by id fragment", Locator: `input[id*='FechasRetencionesHasta']`, Expect: engine.ExpectVisible},
			}},
			Value:   r.Hasta,
			Dismiss: engine.KeyTab,
		},
	}
}

// BuildCyclePlan assembles the export cycle for one tax kind and operation.
// freshness bounds how old the matched row's timestamp may be; now supplies
// the clock and may be nil.
func BuildCyclePlan(kind TaxKind, dates DateRange, freshness time.Duration, now func() time.Time) engine.CyclePlan {
	refresh := refreshTable
	return engine.CyclePlan{
		Fields:        dateFields(dates),
		ExportActions: []engine.Target{exportMenu, exportCSV},
		ModalRoot:     exportModal,
		ViewFile:      viewFile,
		ExportedTab:   exportedTab,
		Refresh:       &refresh,
		Rows:          firstRowLocators,
		Criteria: engine.RowCriteria{
			FinishedTokens: []string{FinishedToken},
			FilterContains: kind.Number(),
			Freshness:      freshness,
			Now:            now,
		},
	}
}

// taxOption returns the multiselect option for a kind's dropdown entry.
func taxOption(code string) engine.Target {
	return engine.Target{Name: "tax-option-" + code, Candidates: []engine.Candidate{
		{Description: "option by id", Locator: "#selectImpuestos-multiselect-option-" + code, Expect: engine.ExpectVisible},
	}}
}

// operationRadio returns the operation-type radio button for a value.
func operationRadio(value string) engine.Target {
	return engine.Target{Name: "operation-" + value, Candidates: []engine.Candidate{
		{Description: "radio by value", Locator: `input[type='radio'][value='` + value + `']`, Expect: engine.ExpectVisible},
	}}
}
