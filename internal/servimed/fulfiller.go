package servimed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
)

// CredentialSource is satisfied by Authenticator.
type CredentialSource interface {
	Authenticate(ctx context.Context, username, password string) (*domain.BearerCredential, error)
}

// CatalogSource is satisfied by Extractor.
type CatalogSource interface {
	Extract(ctx context.Context, cred *domain.BearerCredential) ([]domain.Product, error)
}

// Fulfiller places supplier orders: it logs in to the supplier portal, then
// runs search, cart and checkout for every item. Unit prices come from the
// supplier catalog and fall back to a default price when the catalog cannot
// be read or does not list the item.
type Fulfiller struct {
	auth             CredentialSource
	catalog          CatalogSource
	defaultUnitPrice float64
	logger           *slog.Logger
	now              func() time.Time
}

// NewFulfiller creates a Fulfiller. catalog may be nil, in which case every
// item is priced at defaultUnitPrice.
func NewFulfiller(
	auth CredentialSource,
	catalog CatalogSource,
	defaultUnitPrice float64,
	logger *slog.Logger,
) *Fulfiller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fulfiller{
		auth:             auth,
		catalog:          catalog,
		defaultUnitPrice: defaultUnitPrice,
		logger:           logger.With("component", "order_fulfiller"),
		now:              time.Now,
	}
}

// Login authenticates against the supplier portal. Errors wrap
// domain.ErrLoginFailed.
func (f *Fulfiller) Login(ctx context.Context, username, password string) (*domain.BearerCredential, error) {
	if f.auth == nil {
		return nil, fmt.Errorf("%w: no credential verifier configured", domain.ErrLoginFailed)
	}

	cred, err := f.auth.Authenticate(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLoginFailed, err)
	}
	return cred, nil
}

// Purchase buys every item in order. The returned result lists one record
// per item, in input order.
func (f *Fulfiller) Purchase(
	ctx context.Context,
	cred *domain.BearerCredential,
	items []domain.OrderItem,
) (*domain.PurchaseResult, error) {
	catalog := f.loadCatalog(ctx, cred)

	records := make([]domain.PurchaseRecord, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("purchase interrupted: %w", err)
		}

		record := f.checkout(item, catalog)
		f.logger.DebugContext(ctx, "item purchased",
			"gtin", item.GTIN,
			"codigo", item.Codigo,
			"quantidade", item.Quantidade,
			"fonte_preco", record.FontePreco)
		records = append(records, record)
	}

	f.logger.InfoContext(ctx, "purchase completed",
		"items", len(records),
		"catalog_size", catalog.Len())

	return &domain.PurchaseResult{
		ProdutosComprados: records,
		TotalProdutos:     len(items),
		Status:            domain.PurchaseStatusSimulated,
		Timestamp:         f.now().UTC(),
	}, nil
}

// loadCatalog reads the supplier catalog. A failure degrades to default
// pricing rather than failing the purchase.
func (f *Fulfiller) loadCatalog(ctx context.Context, cred *domain.BearerCredential) *domain.Catalog {
	if f.catalog == nil || cred == nil {
		return nil
	}

	products, err := f.catalog.Extract(ctx, cred)
	if err != nil {
		f.logger.WarnContext(ctx, "catalog unavailable, using default unit price",
			"default_unit_price", f.defaultUnitPrice,
			"error", err)
		return nil
	}
	return domain.NewCatalog(products)
}

func (f *Fulfiller) checkout(item domain.OrderItem, catalog *domain.Catalog) domain.PurchaseRecord {
	price := f.defaultUnitPrice
	source := domain.PriceSourceDefault
	if p, ok := catalog.Lookup(item); ok {
		price = p.PrecoFabrica
		source = domain.PriceSourceCatalog
	}

	return domain.PurchaseRecord{
		GTIN:          item.GTIN,
		Codigo:        item.Codigo,
		Quantidade:    item.Quantidade,
		Status:        domain.PurchaseItemStatusBought,
		PrecoUnitario: price,
		PrecoTotal:    roundCents(price * float64(item.Quantidade)),
		FontePreco:    source,
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
