package arca

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nlavaggi/retex/internal/engine"
)

// Page is what the portal flow needs from a live browser tab: the engine's
// interaction surface plus navigation.
type Page interface {
	engine.Page
	Navigate(ctx context.Context, url string) error
}

// Portal drives everything before the export cycle: login, opening the
// service, picking the represented CUIT, and preparing one query.
type Portal struct {
	page     Page
	resolver *engine.Resolver
	loginURL string
	settle   time.Duration
	logger   *zap.Logger
}

// NewPortal creates a flow over the given page. loginURL overrides the
// default credential entry point when non-empty; settle is the pause after
// actions that trigger an in-page rerender.
func NewPortal(page Page, resolver *engine.Resolver, loginURL string, settle time.Duration, logger *zap.Logger) *Portal {
	if loginURL == "" {
		loginURL = LoginURL
	}
	return &Portal{
		page:     page,
		resolver: resolver,
		loginURL: loginURL,
		settle:   settle,
		logger:   logger.Named("portal"),
	}
}

// Login authenticates with CUIT and clave. The clave is never logged.
func (p *Portal) Login(ctx context.Context, cuit, clave string) error {
	if err := ValidateCUIT(cuit); err != nil {
		return err
	}
	if clave == "" {
		return fmt.Errorf("empty clave")
	}
	p.logger.Info("Logging in.", zap.String("cuit", cuit))

	if err := p.page.Navigate(ctx, p.loginURL); err != nil {
		return fmt.Errorf("navigating to login: %w", err)
	}
	if err := p.fill(ctx, loginUser, cuit); err != nil {
		return err
	}
	if err := p.click(ctx, loginNext); err != nil {
		return err
	}
	if err := p.fill(ctx, loginPassword, clave); err != nil {
		return err
	}
	if err := p.click(ctx, loginSubmit); err != nil {
		return err
	}
	p.logger.Info("Login submitted.")
	return nil
}

// OpenService clicks the Mis Retenciones tile on the portal home. When the
// tile sits behind the "Ver todos" link, that link is expanded first.
func (p *Portal) OpenService(ctx context.Context) error {
	_, err := p.resolver.Resolve(ctx, serviceTile)
	if err != nil {
		if !engine.IsNotFound(err) {
			return err
		}
		p.logger.Info("Service tile not on home, expanding full service list.")
		if err := p.click(ctx, verTodos); err != nil {
			return fmt.Errorf("service tile absent and %w", err)
		}
		if err := p.settleDown(ctx); err != nil {
			return err
		}
	}
	if err := p.click(ctx, serviceTile); err != nil {
		return err
	}
	p.logger.Info("Mis Retenciones opened.")
	return p.settleDown(ctx)
}

// SelectRepresentado switches the session to the target CUIT. The portal
// skips this chooser entirely for single-relation users, so an absent menu or
// card falls back to the default CUIT with a warning instead of failing.
func (p *Portal) SelectRepresentado(ctx context.Context, cuit string) error {
	if err := ValidateCUIT(cuit); err != nil {
		return err
	}

	if err := p.click(ctx, userMenu); err != nil {
		if !engine.IsNotFound(err) {
			return err
		}
	} else if err := p.settleDown(ctx); err != nil {
		return err
	}

	if err := p.click(ctx, changeRelation); err != nil {
		if engine.IsNotFound(err) {
			p.logger.Warn("Relation chooser not present, keeping default CUIT.",
				zap.String("cuit", cuit))
			return nil
		}
		return err
	}
	if err := p.settleDown(ctx); err != nil {
		return err
	}

	formatted := FormatCUIT(cuit)
	if err := p.click(ctx, representadoCard(formatted)); err != nil {
		if engine.IsNotFound(err) {
			p.logger.Warn("Target CUIT not in relation list, keeping default.",
				zap.String("cuit", formatted))
			return nil
		}
		return err
	}
	p.logger.Info("Representado selected.", zap.String("cuit", formatted))
	return p.settleDown(ctx)
}

// PrepareQuery selects the tax kind in the multiselect and, when the form
// shows one, the operation-type radio. Some kinds (customs) legitimately have
// no operation field, so an absent radio is tolerated.
func (p *Portal) PrepareQuery(ctx context.Context, kind TaxKind, op Operation) error {
	p.logger.Info("Preparing query.",
		zap.String("tax", kind.Code),
		zap.String("operation", op.Label))

	if err := p.click(ctx, taxSelect); err != nil {
		return err
	}
	if err := p.settleDown(ctx); err != nil {
		return err
	}
	if err := p.click(ctx, taxOption(kind.Code)); err != nil {
		return err
	}
	if err := p.settleDown(ctx); err != nil {
		return err
	}

	if op.Value == "" {
		return nil
	}
	if err := p.click(ctx, operationRadio(op.Value)); err != nil {
		if engine.IsNotFound(err) {
			p.logger.Warn("Operation-type field absent for this tax kind.",
				zap.String("tax", kind.Code))
			return nil
		}
		return err
	}
	return nil
}

// Consultar submits the query and waits for the results toolbar. The export
// button doubles as the results-loaded signal.
func (p *Portal) Consultar(ctx context.Context) error {
	if err := p.click(ctx, consultar); err != nil {
		return err
	}
	if _, err := p.resolver.Resolve(ctx, resultsReady); err != nil {
		if engine.IsNotFound(err) {
			return fmt.Errorf("results never loaded after consultar: %w", err)
		}
		return err
	}
	p.logger.Info("Results loaded.")
	return nil
}

// NewQuery returns to the query form for the next operation or tax kind.
func (p *Portal) NewQuery(ctx context.Context) error {
	if err := p.click(ctx, nuevaConsultaTab); err != nil {
		return err
	}
	return p.settleDown(ctx)
}

func (p *Portal) click(ctx context.Context, target engine.Target) error {
	match, err := p.resolver.Resolve(ctx, target)
	if err != nil {
		return err
	}
	if err := p.page.Click(ctx, match.Candidate.Locator); err != nil {
		return fmt.Errorf("clicking %q: %w", match.Candidate.Description, err)
	}
	return nil
}

func (p *Portal) fill(ctx context.Context, target engine.Target, value string) error {
	match, err := p.resolver.Resolve(ctx, target)
	if err != nil {
		return err
	}
	if err := p.page.Click(ctx, match.Candidate.Locator); err != nil {
		return fmt.Errorf("focusing %q: %w", match.Candidate.Description, err)
	}
	if err := p.page.ClearAndFill(ctx, match.Candidate.Locator, value); err != nil {
		return fmt.Errorf("filling %q: %w", match.Candidate.Description, err)
	}
	return nil
}

func (p *Portal) settleDown(ctx context.Context) error {
	t := time.NewTimer(p.settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func representadoCard(formatted string) engine.Target {
	return engine.Target{Name: "representado-card", Candidates: []engine.Candidate{
		{
			Description: "relation card by cuit heading",
			Locator:     `//h6[contains(@class,'e-relation__text--cuit')][contains(., '` + formatted + `')]/ancestor::div[contains(@class,'e-relation__card')]`,
			Expect:      engine.ExpectClickable,
		},
		{
			Description: "any card wrapping cuit heading",
			Locator:     `//h6[contains(., '` + formatted + `')]/ancestor::div[contains(@class,'card')]`,
			Expect:      engine.ExpectClickable,
		},
	}}
}
