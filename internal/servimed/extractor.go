package servimed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
)

// ExtractorConfig holds the products endpoint settings.
type ExtractorConfig struct {
	BaseURL          string
	ProductsEndpoint string
	Timeout          time.Duration
	Retry            RetryPolicy
}

// Extractor fetches the supplier product collection.
type Extractor struct {
	client *http.Client
	cfg    ExtractorConfig
	logger *slog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg ExtractorConfig, client *http.Client, logger *slog.Logger) *Extractor {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "extractor"),
	}
}

// Extract returns the products visible to the credential. A transport
// failure, a non-200 status or a body that is not a JSON list wraps
// domain.ErrExtraction. Individual malformed products are skipped with a
// warning; an empty list is a valid result.
func (e *Extractor) Extract(ctx context.Context, cred *domain.BearerCredential) ([]domain.Product, error) {
	if cred == nil {
		return nil, fmt.Errorf("%w: missing credential", domain.ErrExtraction)
	}

	var raw []json.RawMessage
	err := withRetry(ctx, e.logger, e.cfg.Retry, "extract products", func(ctx context.Context) error {
		items, err := e.fetch(ctx, cred)
		if err != nil {
			return err
		}
		raw = items
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}

	products := make([]domain.Product, 0, len(raw))
	for i, item := range raw {
		var p domain.Product
		if err := json.Unmarshal(item, &p); err != nil {
			e.logger.WarnContext(ctx, "skipping undecodable product", "index", i, "error", err)
			continue
		}
		p.Normalize()
		if err := p.Validate(); err != nil {
			e.logger.WarnContext(ctx, "skipping invalid product",
				"index", i,
				"product_id", p.ID,
				"error", err)
			continue
		}
		products = append(products, p)
	}

	e.logger.InfoContext(ctx, "products extracted",
		"received", len(raw),
		"accepted", len(products))

	return products, nil
}

func (e *Extractor) fetch(ctx context.Context, cred *domain.BearerCredential) ([]json.RawMessage, error) {
	ctx, cancel := callTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(e.cfg.BaseURL, "/") + e.cfg.ProductsEndpoint
	req, err := newJSONRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", cred.AuthorizationHeader())

	resp, err := send(e.client, req)
	if err != nil {
		return nil, fmt.Errorf("products request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError("products endpoint", resp)
	}

	var items []json.RawMessage
	// A JSON null decodes into a nil slice without error.
	if err := json.Unmarshal(resp.Body, &items); err != nil || items == nil {
		return nil, fmt.Errorf("%w: response is not a product list", ErrInvalidResponse)
	}
	return items, nil
}
