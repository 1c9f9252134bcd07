package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
)

// ErrInvalidJob is returned when a job's payload does not match its kind.
var ErrInvalidJob = errors.New("invalid job")

// Job is the unit of work handed from the dispatcher to the workers. It
// carries the original request, credentials included, and is never written to
// the task record store.
type Job struct {
	TaskID     string                  `json:"task_id"`
	Kind       domain.TaskKind         `json:"kind"`
	Scraping   *domain.ScrapingRequest `json:"scraping,omitempty"`
	Order      *domain.OrderRequest    `json:"order,omitempty"`
	EnqueuedAt time.Time               `json:"enqueued_at"`

	// Ack is set by broker-backed queues. Workers call it once the job has
	// been handled, whatever the outcome.
	Ack func() error `json:"-"`
}

// Validate checks that the job carries exactly the payload of its kind.
func (j Job) Validate() error {
	if j.TaskID == "" {
		return fmt.Errorf("%w: empty task id", ErrInvalidJob)
	}
	switch j.Kind {
	case domain.TaskKindScraping:
		if j.Scraping == nil || j.Order != nil {
			return fmt.Errorf("%w: scraping job needs a scraping payload", ErrInvalidJob)
		}
	case domain.TaskKindOrder:
		if j.Order == nil || j.Scraping != nil {
			return fmt.Errorf("%w: order job needs an order payload", ErrInvalidJob)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidJob, j.Kind)
	}
	return nil
}

// Queue carries jobs from the dispatcher to the worker pool.
// Version: 1.0
type Queue interface {
	// Enqueue hands a job over without blocking.
	// Returns an error if the queue is full, closed or unreachable.
	Enqueue(ctx context.Context, job Job) error

	// Jobs returns the channel workers consume from. It is closed by Close.
	Jobs() <-chan Job

	// Close stops accepting jobs and releases resources.
	Close() error
}

// JobHandler runs one job to completion.
type JobHandler interface {
	Execute(ctx context.Context, job Job) error
}

// Pipeline runs the steps for one task kind and returns the value stored as
// the task result.
type Pipeline interface {
	Run(ctx context.Context, job Job, reporter ProgressReporter) (any, error)
}

// CredentialVerifier exchanges user credentials for a bearer credential.
type CredentialVerifier interface {
	Authenticate(ctx context.Context, username, password string) (*domain.BearerCredential, error)
}

// credentialInvalidator is implemented by verifiers that cache credentials.
type credentialInvalidator interface {
	Invalidate(username string)
}

// Extractor fetches the product collection visible to a credential.
type Extractor interface {
	Extract(ctx context.Context, cred *domain.BearerCredential) ([]domain.Product, error)
}

// OrderFulfiller logs in to the supplier portal and buys order items.
type OrderFulfiller interface {
	Login(ctx context.Context, username, password string) (*domain.BearerCredential, error)
	Purchase(ctx context.Context, cred *domain.BearerCredential, items []domain.OrderItem) (*domain.PurchaseResult, error)
}

// OrderRegistry registers orders with the order-management API.
type OrderRegistry interface {
	Create(ctx context.Context, items []domain.OrderItem) (*domain.ExternalOrder, error)
	MarkProcessed(ctx context.Context, orderID int64, supplierCode string) error
}

// CallbackDispatcher delivers payloads to caller-supplied URLs. Delivery is
// best-effort and always yields an outcome.
type CallbackDispatcher interface {
	Deliver(ctx context.Context, callbackURL string, payload any, cred *domain.BearerCredential) *domain.CallbackOutcome
}

// checkContext returns a wrapped error once ctx is done.
func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("task cancelled: %w", err)
	}
	return nil
}
