// internal/engine/orchestrator.go
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Stage names a step of the export-cycle state machine.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageFormFilled      Stage = "form-filled"
	StageExportTriggered Stage = "export-triggered"
	StageVariantDetected Stage = "variant-detected"
	StageModalPath       Stage = "modal-path"
	StageTabPath         Stage = "tab-path"
	StageNavigated       Stage = "navigated"
	StageDone            Stage = "done"
)

// Event is one structured diagnostic emitted on a state transition: which
// stage ran, which candidate or variant matched, and how it ended. The trace
// of events supports post-hoc failure analysis without screen captures.
type Event struct {
	Stage   Stage
	Detail  string
	Outcome string
}

// CyclePlan is the declarative description of one export cycle: the date
// fields to fill, the actions that trigger the export, the targets of both
// post-export paths, and the row criteria for the poll phase. All selector
// knowledge lives here as ranked candidate data; new fallbacks are additive
// data, not new branching logic.
type CyclePlan struct {
	Fields        []FieldSpec
	ExportActions []Target
	ModalRoot     Target
	ViewFile      Target
	ExportedTab   Target
	Refresh       *Target
	Rows          RowLocators
	Criteria      RowCriteria
}

// Orchestrator drives one export cycle:
//
//	Idle -> FormFilled -> ExportTriggered -> VariantDetected
//	     -> {ModalPath | TabPath} -> Navigated -> Done
//
// A single logical flow of control, cooperatively suspended at each bounded
// wait. Cycles are strictly sequential over the one page they share.
type Orchestrator struct {
	page      Page
	resolver  *Resolver
	detector  *VariantDetector
	filler    *FormFiller
	poller    *ResultPoller
	downloads DownloadResolver
	retryWait time.Duration
	logger    *zap.Logger

	trace []Event
}

// NewOrchestrator wires the engine components together. retryWait is the
// extra wait before the single "view file" re-resolution attempt on the
// modal path.
func NewOrchestrator(
	page Page,
	resolver *Resolver,
	detector *VariantDetector,
	filler *FormFiller,
	poller *ResultPoller,
	downloads DownloadResolver,
	retryWait time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		page:      page,
		resolver:  resolver,
		detector:  detector,
		filler:    filler,
		poller:    poller,
		downloads: downloads,
		retryWait: retryWait,
		logger:    logger.Named("orchestrator"),
	}
}

// Trace returns the diagnostic events of the most recent cycle.
func (o *Orchestrator) Trace() []Event {
	out := make([]Event, len(o.trace))
	copy(out, o.trace)
	return out
}

func (o *Orchestrator) emit(stage Stage, detail, outcome string) {
	o.trace = append(o.trace, Event{Stage: stage, Detail: detail, Outcome: outcome})
	o.logger.Info("Cycle transition.",
		zap.String("stage", string(stage)),
		zap.String("detail", detail),
		zap.String("outcome", outcome))
}

// RunExportCycle executes one full cycle against the plan and returns the
// descriptor of the downloaded file. Every error is wrapped in a CycleError
// naming the stage and UI variant that were active; nothing is swallowed.
func (o *Orchestrator) RunExportCycle(ctx context.Context, plan CyclePlan) (FileDescriptor, error) {
	o.trace = o.trace[:0]
	variant := VariantUnknown
	fail := func(stage Stage, err error) (FileDescriptor, error) {
		o.emit(stage, err.Error(), "failed")
		return FileDescriptor{}, &CycleError{Stage: stage, Variant: variant, Err: err}
	}

	// Idle -> FormFilled.
	if err := o.filler.FillFields(ctx, plan.Fields); err != nil {
		return fail(StageFormFilled, err)
	}
	o.emit(StageFormFilled, fieldNames(plan.Fields), "ok")

	// FormFilled -> ExportTriggered. Failure here is fatal for the cycle.
	for _, action := range plan.ExportActions {
		match, err := o.clickTarget(ctx, action)
		if err != nil {
			return fail(StageExportTriggered, err)
		}
		o.emit(StageExportTriggered, match.Candidate.Description, "ok")
	}

	// ExportTriggered -> VariantDetected.
	v, err := o.detector.Detect(ctx, plan.ModalRoot)
	if err != nil {
		return fail(StageVariantDetected, err)
	}
	variant = v
	o.emit(StageVariantDetected, variant.String(), "ok")

	// VariantDetected -> {ModalPath | TabPath} -> Navigated.
	switch variant {
	case VariantModalConfirmed:
		if err := o.runModalPath(ctx, plan); err != nil {
			return fail(StageModalPath, err)
		}
	case VariantSilentExport:
		match, err := o.clickTarget(ctx, plan.ExportedTab)
		if err != nil {
			return fail(StageTabPath, err)
		}
		o.emit(StageTabPath, match.Candidate.Description, "ok")
	default:
		return fail(StageVariantDetected, fmt.Errorf("unexpected variant %s", variant))
	}
	o.emit(StageNavigated, variant.String(), "ok")

	// Navigated -> poll -> download resolution.
	row, err := o.poller.AwaitExportedFile(ctx, plan.Rows, plan.Criteria, plan.Refresh)
	if err != nil {
		return fail(StageNavigated, err)
	}

	fd, err := o.downloads.Resolve(ctx, row.DownloadTrigger)
	if err != nil {
		return fail(StageDone, err)
	}
	o.emit(StageDone, fd.SuggestedName, "ok")
	return fd, nil
}

// runModalPath resolves and clicks the modal's "view file" action. A missing
// button after all candidates are exhausted gets exactly one extra resolution
// attempt after a short extra wait before becoming fatal.
func (o *Orchestrator) runModalPath(ctx context.Context, plan CyclePlan) error {
	match, err := o.resolver.Resolve(ctx, plan.ViewFile)
	if err != nil {
		if !IsNotFound(err) {
			return err
		}
		o.emit(StageModalPath, plan.ViewFile.Name, "retry")
		if perr := pause(ctx, o.retryWait); perr != nil {
			return perr
		}
		match, err = o.resolver.Resolve(ctx, plan.ViewFile)
		if err != nil {
			return err
		}
	}
	if err := o.page.Click(ctx, match.Candidate.Locator); err != nil {
		return fmt.Errorf("clicking %q: %w", match.Candidate.Description, err)
	}
	o.emit(StageModalPath, match.Candidate.Description, "ok")
	return nil
}

func (o *Orchestrator) clickTarget(ctx context.Context, target Target) (Match, error) {
	match, err := o.resolver.Resolve(ctx, target)
	if err != nil {
		return Match{}, err
	}
	if err := o.page.Click(ctx, match.Candidate.Locator); err != nil {
		return Match{}, fmt.Errorf("clicking %q: %w", match.Candidate.Description, err)
	}
	return match, nil
}

func fieldNames(specs []FieldSpec) string {
	names := ""
	for i, s := range specs {
		if i > 0 {
			names += ","
		}
		names += s.Name
	}
	return names
}
