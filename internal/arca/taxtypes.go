// Package arca carries the portal-specific knowledge for the ARCA (ex AFIP)
// "Mis Retenciones" service: the tax-type catalogue, CUIT and date-range
// validation, and the ranked selector data every export cycle runs against.
package arca

import (
	"fmt"
	"strings"
)

// OperationMode describes which operation-type queries a tax kind requires.
type OperationMode string

const (
	// ModeRetencion runs a single query for withholdings.
	ModeRetencion OperationMode = "retencion"
	// ModePercepcion runs a single query for perceptions.
	ModePercepcion OperationMode = "percepcion"
	// ModeAmbas runs one combined query covering both.
	ModeAmbas OperationMode = "ambas"
	// ModeAmbasSeparadas runs two queries, withholdings first.
	ModeAmbasSeparadas OperationMode = "ambas_separadas"
	// ModeFechaSolo has no operation-type field at all (customs taxes).
	ModeFechaSolo OperationMode = "fecha_solo"
)

// Operation is one concrete query to run: the radio-button value the form
// expects and a human-readable label. An empty Value means the form has no
// operation-type field for this tax kind.
type Operation struct {
	Value string
	Label string
}

// TaxKind is one entry of the service's tax-type multiselect.
type TaxKind struct {
	// Code is the multiselect option suffix, e.g. "IMP_217".
	Code string
	// Name is the visible option text, e.g. "217 - SICORE-IMPTO.A LAS GANANCIAS".
	Name string
	// Category groups kinds the way the portal does.
	Category string
	Mode     OperationMode
}

// Number returns the bare tax number, the part of the code after the category
// prefix. It is what appears in the exported-queries filter cell.
func (k TaxKind) Number() string {
	if i := strings.IndexByte(k.Code, '_'); i >= 0 {
		return k.Code[i+1:]
	}
	return k.Code
}

// Operations expands the kind's mode into the ordered list of queries to run.
func (k TaxKind) Operations() []Operation {
	switch k.Mode {
	case ModeRetencion:
		return []Operation{{Value: "1", Label: "Retención"}}
	case ModePercepcion:
		return []Operation{{Value: "2", Label: "Percepción"}}
	case ModeAmbas:
		return []Operation{{Value: "0", Label: "Retención y percepción"}}
	case ModeAmbasSeparadas:
		return []Operation{
			{Value: "1", Label: "Retención"},
			{Value: "2", Label: "Percepción"},
		}
	case ModeFechaSolo:
		return []Operation{{Label: "Solo fecha"}}
	default:
		return nil
	}
}

// TaxKinds is the full catalogue the service offers, in portal order.
var TaxKinds = []TaxKind{
	{Code: "IMP_172", Name: "172 - IMPUESTO TRANSF DE INMUEBLES", Category: "Impositivas", Mode: ModeRetencion},
	{Code: "IMP_216", Name: "216 - SIRE - IVA", Category: "Impositivas", Mode: ModeRetencion},
	{Code: "IMP_217", Name: "217 - SICORE-IMPTO.A LAS GANANCIAS", Category: "Impositivas", Mode: ModeAmbas},
	{Code: "IMP_218", Name: "218 - IMP.A LAS GAN.- BENEF.DEL EXT.", Category: "Impositivas", Mode: ModeRetencion},
	{Code: "IMP_219", Name: "219 - SICORE-IMPTO.S/ BS PERSONALES", Category: "Impositivas", Mode: ModeAmbasSeparadas},
	{Code: "IMP_222", Name: "222 - DONACIONES Y OTRO TIPO DE LIB.", Category: "Impositivas", Mode: ModeRetencion},
	{Code: "IMP_466", Name: "466 - SICORE-PREMIOS JUEGOS Y C.DEP", Category: "Impositivas", Mode: ModeRetencion},
	{Code: "IMP_767", Name: "767 - SICORE - RETENCIONES Y PERCEPC", Category: "Impositivas", Mode: ModeAmbas},
	{Code: "IMP_787", Name: "787 - RET ART 79 LEY GCIAS INC A,ByC", Category: "Impositivas", Mode: ModeRetencion},
	{Code: "IMP_939", Name: "939 - PERCEPCION IMPUESTO PAIS", Category: "Impositivas", Mode: ModePercepcion},
	{Code: "SS_353", Name: "353 - RETENCIONES CONTRIB.SEG.SOCIAL", Category: "Seguridad Social", Mode: ModeAmbas},
	{Code: "ADU_217", Name: "217 - SICORE-IMPTO.A LAS GANANCIAS", Category: "Aduaneras", Mode: ModeFechaSolo},
	{Code: "ADU_767", Name: "767 - SICORE - RETENCIONES Y PERCEPC", Category: "Aduaneras", Mode: ModeFechaSolo},
	{Code: "SIR_216", Name: "216 - SIRE - IVA", Category: "Certificados SIRE", Mode: ModeRetencion},
	{Code: "SIR_218", Name: "218 - IMP.A LAS GAN.- BENEF.DEL EXT.", Category: "Certificados SIRE", Mode: ModeRetencion},
	{Code: "SIR_353", Name: "353 - RETENCIONES CONTRIB.SEG.SOCIAL", Category: "Certificados SIRE", Mode: ModeAmbas},
}

// TaxKindByCode looks a kind up by its multiselect code.
func TaxKindByCode(code string) (TaxKind, error) {
	for _, k := range TaxKinds {
		if k.Code == code {
			return k, nil
		}
	}
	return TaxKind{}, fmt.Errorf("unknown tax kind %q", code)
}
