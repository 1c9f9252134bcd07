package task

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCredential() *domain.BearerCredential {
	return &domain.BearerCredential{AccessToken: "tok", TokenType: "bearer", ExpiresIn: 1800}
}

func twoProducts() []domain.Product {
	return []domain.Product{
		{ID: 1, GTIN: "7891234567890", Codigo: "A1", Descricao: "Dipirona", PrecoFabrica: 12.5, Estoque: 10},
		{ID: 2, GTIN: "7890000000002", Codigo: "B2", Descricao: "Paracetamol", PrecoFabrica: 8, Estoque: 3},
	}
}

func twoItems() []domain.OrderItem {
	return []domain.OrderItem{
		{GTIN: "7891234567890", Codigo: "A1", Quantidade: 2},
		{GTIN: "7890000000002", Codigo: "B2", Quantidade: 1},
	}
}

func scrapingJob(id string) Job {
	return Job{
		TaskID: id,
		Kind:   domain.TaskKindScraping,
		Scraping: &domain.ScrapingRequest{
			Usuario:     "user",
			Senha:       "pass",
			CallbackURL: "https://caller.example/hook",
		},
	}
}

func orderJob(id string) Job {
	return Job{
		TaskID: id,
		Kind:   domain.TaskKindOrder,
		Order: &domain.OrderRequest{
			Usuario:     "user",
			Senha:       "pass",
			IDPedido:    "P-1",
			Produtos:    twoItems(),
			CallbackURL: "https://caller.example/hook",
		},
	}
}

type fakeVerifier struct {
	mu          sync.Mutex
	cred        *domain.BearerCredential
	err         error
	calls       int
	invalidated []string
}

func (f *fakeVerifier) Authenticate(context.Context, string, string) (*domain.BearerCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.cred, f.err
}

func (f *fakeVerifier) Invalidate(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, username)
}

type fakeExtractor struct {
	products []domain.Product
	err      error
	block    chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, _ *domain.BearerCredential) ([]domain.Product, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.products, f.err
}

type callbackCall struct {
	url     string
	payload any
	cred    *domain.BearerCredential
}

type fakeCallbacks struct {
	mu      sync.Mutex
	outcome *domain.CallbackOutcome
	calls   []callbackCall
}

func newFakeCallbacks(status string) *fakeCallbacks {
	code := 200
	if status != domain.CallbackStatusSuccess {
		code = 500
	}
	return &fakeCallbacks{outcome: &domain.CallbackOutcome{Status: status, StatusCode: code}}
}

func (f *fakeCallbacks) Deliver(
	_ context.Context,
	url string,
	payload any,
	cred *domain.BearerCredential,
) *domain.CallbackOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, callbackCall{url: url, payload: payload, cred: cred})
	return f.outcome
}

func (f *fakeCallbacks) Calls() []callbackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]callbackCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeFulfiller struct {
	loginErr    error
	purchaseErr error
}

func (f *fakeFulfiller) Login(context.Context, string, string) (*domain.BearerCredential, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return testCredential(), nil
}

func (f *fakeFulfiller) Purchase(
	_ context.Context,
	_ *domain.BearerCredential,
	items []domain.OrderItem,
) (*domain.PurchaseResult, error) {
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	records := make([]domain.PurchaseRecord, 0, len(items))
	for _, it := range items {
		records = append(records, domain.PurchaseRecord{
			GTIN:          it.GTIN,
			Codigo:        it.Codigo,
			Quantidade:    it.Quantidade,
			Status:        domain.PurchaseItemStatusBought,
			PrecoUnitario: 10.50,
			PrecoTotal:    10.50 * float64(it.Quantidade),
			FontePreco:    domain.PriceSourceDefault,
		})
	}
	return &domain.PurchaseResult{
		ProdutosComprados: records,
		TotalProdutos:     len(items),
		Status:            domain.PurchaseStatusSimulated,
	}, nil
}

type fakeRegistry struct {
	mu          sync.Mutex
	orderID     int64
	createErr   error
	updateErr   error
	updatedIDs  []int64
	supplierIDs []string
}

func (f *fakeRegistry) Create(_ context.Context, items []domain.OrderItem) (*domain.ExternalOrder, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &domain.ExternalOrder{ID: f.orderID, Itens: items}, nil
}

func (f *fakeRegistry) MarkProcessed(_ context.Context, orderID int64, supplierCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedIDs = append(f.updatedIDs, orderID)
	f.supplierIDs = append(f.supplierIDs, supplierCode)
	return f.updateErr
}

// recordingReporter captures checkpoints without a store.
type recordingReporter struct {
	mu          sync.Mutex
	checkpoints []Checkpoint
	callbacks   []*domain.CallbackOutcome
	failAt      string
	err         error
}

func (r *recordingReporter) Report(_ context.Context, cp Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAt == cp.Name {
		return r.err
	}
	r.checkpoints = append(r.checkpoints, cp)
	return nil
}

func (r *recordingReporter) RecordCallback(_ context.Context, outcome *domain.CallbackOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, outcome)
}

func (r *recordingReporter) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.checkpoints))
	for _, cp := range r.checkpoints {
		names = append(names, cp.Name)
	}
	return names
}

// recordingEmitter captures emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.TaskEvent
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.TaskEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) types() []events.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]events.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}
