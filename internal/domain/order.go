package domain

import (
	"strconv"
	"time"
)

// Purchase and order status values exchanged with the supplier and the
// order-management API.
const (
	PurchaseItemStatusBought   = "comprado"
	PurchaseStatusSimulated    = "compra_simulada"
	OrderStatusSynthetic       = "simulado"
	OrderStatusProcessed       = "processado"
	ConfirmationStatusPlaced   = "pedido_realizado"
	PriceSourceCatalog         = "catalogo"
	PriceSourceDefault         = "estimado"
	SyntheticOrderID     int64 = 999
)

// PurchaseRecord is the outcome of the search, cart and checkout sequence for
// one order item.
type PurchaseRecord struct {
	GTIN          string  `json:"gtin"`
	Codigo        string  `json:"codigo"`
	Quantidade    int     `json:"quantidade"`
	Status        string  `json:"status"`
	PrecoUnitario float64 `json:"preco_unitario"`
	PrecoTotal    float64 `json:"preco_total"`
	FontePreco    string  `json:"fonte_preco"`
}

// PurchaseResult aggregates the per-item purchase records.
type PurchaseResult struct {
	ProdutosComprados []PurchaseRecord `json:"produtos_comprados"`
	TotalProdutos     int              `json:"total_produtos"`
	Status            string           `json:"status"`
	Timestamp         time.Time        `json:"timestamp"`
}

// ExternalOrder is an order as known by the order-management API.
type ExternalOrder struct {
	ID               int64       `json:"id"`
	CodigoFornecedor *string     `json:"codigo_fornecedor"`
	Status           *string     `json:"status"`
	Itens            []OrderItem `json:"itens"`
}

// NewSyntheticOrder builds the local stand-in used when the order-management
// API cannot register an order.
func NewSyntheticOrder(items []OrderItem) *ExternalOrder {
	status := OrderStatusSynthetic
	itens := make([]OrderItem, len(items))
	copy(itens, items)
	return &ExternalOrder{
		ID:     SyntheticOrderID,
		Status: &status,
		Itens:  itens,
	}
}

// PurchaseConfirmation is delivered to the order callback.
type PurchaseConfirmation struct {
	CodigoConfirmacao string `json:"codigo_confirmacao"`
	Status            string `json:"status"`
}

// NewPurchaseConfirmation builds the confirmation for an external order.
func NewPurchaseConfirmation(order *ExternalOrder) PurchaseConfirmation {
	return PurchaseConfirmation{
		CodigoConfirmacao: strconv.FormatInt(order.ID, 10),
		Status:            ConfirmationStatusPlaced,
	}
}
