package task

import (
	"context"
	"fmt"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/platform/logger"
	"github.com/IuryyCosta/test-servimed/internal/redact"
)

// Values written to OrderResult
const (
	OrderResultStatusCompleted = "completed"
	OrderResultMessage         = "Pedido processado com sucesso"
)

// OrderPipelineConfig tunes the order pipeline.
type OrderPipelineConfig struct {
	// SupplierCode is sent when marking an order processed.
	SupplierCode string

	// FallbackOnCreateFailure substitutes a synthetic order when the
	// order-management API cannot register one. When false the task fails.
	FallbackOnCreateFailure bool
}

// OrderPipeline logs in to the supplier, buys the items, registers and
// updates the order, then delivers the confirmation.
type OrderPipeline struct {
	fulfiller OrderFulfiller
	registry  OrderRegistry
	callbacks CallbackDispatcher
	config    OrderPipelineConfig
	now       func() time.Time
}

// NewOrderPipeline creates an OrderPipeline.
func NewOrderPipeline(
	fulfiller OrderFulfiller,
	registry OrderRegistry,
	callbacks CallbackDispatcher,
	config OrderPipelineConfig,
) *OrderPipeline {
	return &OrderPipeline{
		fulfiller: fulfiller,
		registry:  registry,
		callbacks: callbacks,
		config:    config,
		now:       time.Now,
	}
}

// Run executes the pipeline. Login and purchase failures are fatal. Order
// registration falls back to a synthetic order when configured; the status
// update and the callback are best-effort.
func (p *OrderPipeline) Run(ctx context.Context, job Job, reporter ProgressReporter) (result any, err error) {
	req := job.Order
	log := logger.FromContext(ctx)
	start := p.now()

	defer func() {
		if err == nil {
			return
		}
		orderID := ""
		if req != nil {
			orderID = req.IDPedido
		}
		log.ErrorContext(ctx, "order processing failed",
			"task_id", job.TaskID,
			"order_id", orderID,
			"status", domain.TaskStatusFailed,
			"processing_time", p.now().Sub(start).Seconds(),
			"error", redact.Error(err))
	}()

	if req == nil || !req.HasRequiredFields() {
		return nil, domain.ErrMissingFields
	}

	cred, err := p.fulfiller.Login(ctx, req.Usuario, req.Senha)
	if err != nil {
		return nil, ensureWrapped(err, domain.ErrLoginFailed)
	}
	if err := p.step(ctx, reporter, CheckpointLoggedIn); err != nil {
		return nil, err
	}

	purchase, err := p.fulfiller.Purchase(ctx, cred, req.Produtos)
	if err != nil {
		return nil, fmt.Errorf("purchase failed: %w", err)
	}
	if err := p.step(ctx, reporter, CheckpointPurchased); err != nil {
		return nil, err
	}

	registered := true
	order, err := p.registry.Create(ctx, req.Produtos)
	if err != nil {
		if !p.config.FallbackOnCreateFailure {
			return nil, ensureWrapped(err, domain.ErrOrderRegistration)
		}
		log.WarnContext(ctx, "order registration failed, using synthetic order",
			"synthetic_order_id", domain.SyntheticOrderID,
			"error", redact.Error(err))
		order = domain.NewSyntheticOrder(req.Produtos)
		registered = false
	}
	if err := p.step(ctx, reporter, CheckpointRegistered); err != nil {
		return nil, err
	}

	updated := false
	if registered {
		if err := p.registry.MarkProcessed(ctx, order.ID, p.config.SupplierCode); err != nil {
			log.WarnContext(ctx, "order status update failed",
				"challenge_order_id", order.ID,
				"error", redact.Error(err))
		} else {
			updated = true
		}
	}
	if err := p.step(ctx, reporter, CheckpointUpdated); err != nil {
		return nil, err
	}

	confirmation := domain.NewPurchaseConfirmation(order)
	outcome := deliver(ctx, p.callbacks, req.CallbackURL, confirmation, nil)
	reporter.RecordCallback(ctx, outcome)
	if !outcome.Sent() {
		log.WarnContext(ctx, "callback failed, order was processed",
			"callback_status", outcome.Status)
	}

	return &domain.OrderResult{
		TaskID:           job.TaskID,
		OrderID:          req.IDPedido,
		Status:           OrderResultStatusCompleted,
		ChallengeOrderID: order.ID,
		OrderRegistered:  registered,
		OrderUpdated:     updated,
		Purchase:         purchase,
		Confirmation:     confirmation,
		CallbackSent:     outcome.Sent(),
		CallbackResponse: outcome,
		ProcessingTime:   p.now().Sub(start).Seconds(),
		Message:          OrderResultMessage,
	}, nil
}

// step reports cp, then checks for cancellation.
func (p *OrderPipeline) step(ctx context.Context, reporter ProgressReporter, cp Checkpoint) error {
	if err := reporter.Report(ctx, cp); err != nil {
		return err
	}
	return checkContext(ctx)
}
