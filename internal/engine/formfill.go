// internal/engine/formfill.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FieldSpec describes one date field to fill: where it is, what it must end up
// holding, and which keystroke closes its picker overlay. Constructed once per
// form-fill invocation, stateless afterwards.
type FieldSpec struct {
	Name    string
	Target  Target
	Value   string
	Dismiss Key
}

// FormFiller fills date-range fields robustly: focus, explicit clear, type,
// dismiss the transient picker overlay, settle, then confirm the field state
// by reading the value back.
type FormFiller struct {
	page     Page
	resolver *Resolver
	settle   time.Duration
	logger   *zap.Logger
}

// NewFormFiller creates a FormFiller with the given settle delay.
func NewFormFiller(page Page, resolver *Resolver, settle time.Duration, logger *zap.Logger) *FormFiller {
	return &FormFiller{
		page:     page,
		resolver: resolver,
		settle:   settle,
		logger:   logger.Named("formfill"),
	}
}

// FillFields fills the specs strictly in the order given. Order matters: a
// picker overlay left open by one field interferes with the adjacent field,
// so each field is dismissed before the next one starts.
func (f *FormFiller) FillFields(ctx context.Context, specs []FieldSpec) error {
	for _, spec := range specs {
		if err := f.FillDateField(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

// FillDateField runs the fill sequence for one field. A readback mismatch is
// recoverable by exactly one retry of the whole sequence; a second mismatch is
// returned as a FillError.
func (f *FormFiller) FillDateField(ctx context.Context, spec FieldSpec) error {
	err := f.fillOnce(ctx, spec)
	if err == nil {
		return nil
	}
	var fe *FillError
	if !errors.As(err, &fe) {
		return err
	}

	f.logger.Warn("Field readback mismatch, retrying fill sequence once.",
		zap.String("field", spec.Name),
		zap.String("got", fe.Got),
		zap.String("want", fe.Want))
	return f.fillOnce(ctx, spec)
}

func (f *FormFiller) fillOnce(ctx context.Context, spec FieldSpec) error {
	match, err := f.resolver.Resolve(ctx, spec.Target)
	if err != nil {
		return fmt.Errorf("locating field %q: %w", spec.Name, err)
	}
	locator := match.Candidate.Locator

	if err := f.page.Click(ctx, locator); err != nil {
		return fmt.Errorf("focusing field %q: %w", spec.Name, err)
	}
	// Explicit empty-fill: never assume the field starts empty.
	if err := f.page.ClearAndFill(ctx, locator, spec.Value); err != nil {
		return fmt.Errorf("filling field %q: %w", spec.Name, err)
	}
	if err := f.page.Press(ctx, spec.Dismiss); err != nil {
		return fmt.Errorf("dismissing picker on field %q: %w", spec.Name, err)
	}
	if err := pause(ctx, f.settle); err != nil {
		return err
	}

	got, err := f.page.Value(ctx, locator)
	if err != nil {
		return fmt.Errorf("reading back field %q: %w", spec.Name, err)
	}
	if got != spec.Value {
		return &FillError{Field: spec.Name, Want: spec.Value, Got: got}
	}

	f.logger.Debug("Field confirmed.",
		zap.String("field", spec.Name),
		zap.String("candidate", match.Candidate.Description))
	return nil
}
