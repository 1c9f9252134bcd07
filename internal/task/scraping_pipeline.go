package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/platform/logger"
)

// ScrapingPipelineConfig tunes the scraping pipeline.
type ScrapingPipelineConfig struct {
	// FailOnEmpty turns an empty extraction into a task failure.
	FailOnEmpty bool
}

// ScrapingPipeline authenticates, extracts the product catalog and delivers
// it to the caller's callback URL.
type ScrapingPipeline struct {
	verifier  CredentialVerifier
	extractor Extractor
	callbacks CallbackDispatcher
	config    ScrapingPipelineConfig
	now       func() time.Time
}

// NewScrapingPipeline creates a ScrapingPipeline.
func NewScrapingPipeline(
	verifier CredentialVerifier,
	extractor Extractor,
	callbacks CallbackDispatcher,
	config ScrapingPipelineConfig,
) *ScrapingPipeline {
	return &ScrapingPipeline{
		verifier:  verifier,
		extractor: extractor,
		callbacks: callbacks,
		config:    config,
		now:       time.Now,
	}
}

// Run executes the pipeline. Authentication and extraction failures are
// fatal; callback delivery is best-effort and recorded in the result.
func (p *ScrapingPipeline) Run(ctx context.Context, job Job, reporter ProgressReporter) (any, error) {
	req := job.Scraping
	if req == nil {
		return nil, fmt.Errorf("%w: missing scraping payload", domain.ErrInternal)
	}
	log := logger.FromContext(ctx)
	start := p.now()

	cred, err := p.verifier.Authenticate(ctx, req.Usuario, req.Senha)
	if err != nil {
		return nil, ensureWrapped(err, domain.ErrAuthentication)
	}
	if err := reporter.Report(ctx, CheckpointAuthenticated); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	products, err := p.extractor.Extract(ctx, cred)
	if err != nil {
		// A rejected token should not be served from the cache again.
		if inv, ok := p.verifier.(credentialInvalidator); ok {
			inv.Invalidate(req.Usuario)
		}
		return nil, ensureWrapped(err, domain.ErrExtraction)
	}
	if products == nil {
		products = []domain.Product{}
	}
	if len(products) == 0 {
		if p.config.FailOnEmpty {
			return nil, domain.ErrNoProducts
		}
		log.WarnContext(ctx, "extraction returned no products")
	}

	if err := reporter.Report(ctx, CheckpointExtracted(len(products))); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	payload := domain.ScrapingCallbackPayload{
		Products:    products,
		ExtractedAt: p.now().UTC(),
		TotalCount:  len(products),
	}
	outcome := deliver(ctx, p.callbacks, req.CallbackURL, payload, cred)
	reporter.RecordCallback(ctx, outcome)
	if !outcome.Sent() {
		log.WarnContext(ctx, "callback not delivered, completing task anyway",
			"callback_status", outcome.Status)
	}

	return &domain.ScrapingResult{
		TaskID:           job.TaskID,
		TotalProducts:    len(products),
		Products:         products,
		ExtractionTime:   p.now().Sub(start).Seconds(),
		CallbackSent:     outcome.Sent(),
		CallbackResponse: outcome,
	}, nil
}

// deliver posts payload through d and never returns a nil outcome.
func deliver(
	ctx context.Context,
	d CallbackDispatcher,
	callbackURL string,
	payload any,
	cred *domain.BearerCredential,
) *domain.CallbackOutcome {
	outcome := d.Deliver(ctx, callbackURL, payload, cred)
	if outcome == nil {
		outcome = &domain.CallbackOutcome{
			Status: domain.CallbackStatusError,
			Error:  domain.ErrDelivery.Error(),
		}
	}
	return outcome
}

// ensureWrapped makes sure err is classified under sentinel.
func ensureWrapped(err, sentinel error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
