package servimed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
)

// OrderRegistryConfig holds the order-management API settings.
type OrderRegistryConfig struct {
	BaseURL string
	Timeout time.Duration
	Retry   RetryPolicy
}

// OrderRegistry registers orders with the order-management API and marks
// them processed once the supplier purchase went through.
type OrderRegistry struct {
	client *http.Client
	cfg    OrderRegistryConfig
	logger *slog.Logger
}

// NewOrderRegistry creates an OrderRegistry.
func NewOrderRegistry(cfg OrderRegistryConfig, client *http.Client, logger *slog.Logger) *OrderRegistry {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderRegistry{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "order_registry"),
	}
}

type createOrderRequest struct {
	Itens []domain.OrderItem `json:"itens"`
}

type updateOrderRequest struct {
	Status           string `json:"status"`
	CodigoFornecedor string `json:"codigo_fornecedor"`
}

// Create posts the items as a new order and expects 201 Created. Transient
// failures are retried under the configured policy. Errors wrap
// domain.ErrOrderRegistration.
func (r *OrderRegistry) Create(ctx context.Context, items []domain.OrderItem) (*domain.ExternalOrder, error) {
	var order *domain.ExternalOrder
	err := withRetry(ctx, r.logger, r.cfg.Retry, "create order", func(ctx context.Context) error {
		o, err := r.create(ctx, items)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrOrderRegistration, err)
	}

	r.logger.InfoContext(ctx, "order registered", "order_id", order.ID)
	return order, nil
}

func (r *OrderRegistry) create(ctx context.Context, items []domain.OrderItem) (*domain.ExternalOrder, error) {
	ctx, cancel := callTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := newJSONRequest(ctx, http.MethodPost, r.ordersURL(), createOrderRequest{Itens: items})
	if err != nil {
		return nil, err
	}

	resp, err := send(r.client, req)
	if err != nil {
		return nil, fmt.Errorf("order request failed: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, newStatusError("order endpoint", resp)
	}

	var order domain.ExternalOrder
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if order.ID <= 0 {
		return nil, fmt.Errorf("%w: order id missing", ErrInvalidResponse)
	}
	return &order, nil
}

// MarkProcessed patches the order status to processed with the supplier
// code. It is attempted once; errors wrap domain.ErrDelivery.
func (r *OrderRegistry) MarkProcessed(ctx context.Context, orderID int64, supplierCode string) error {
	ctx, cancel := callTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	body := updateOrderRequest{
		Status:           domain.OrderStatusProcessed,
		CodigoFornecedor: supplierCode,
	}
	endpoint := r.ordersURL() + "/" + strconv.FormatInt(orderID, 10)

	req, err := newJSONRequest(ctx, http.MethodPatch, endpoint, body)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}

	resp, err := send(r.client, req)
	if err != nil {
		return fmt.Errorf("%w: order update failed: %w", domain.ErrDelivery, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: %w", domain.ErrDelivery, newStatusError("order update endpoint", resp))
	}

	r.logger.InfoContext(ctx, "order marked processed", "order_id", orderID)
	return nil
}

func (r *OrderRegistry) ordersURL() string {
	return strings.TrimRight(r.cfg.BaseURL, "/") + "/pedido"
}
