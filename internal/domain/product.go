package domain

import (
	"errors"
	"strings"
)

// Validation errors for extracted products
var (
	ErrEmptyGTIN        = errors.New("product GTIN cannot be empty")
	ErrNegativePrice    = errors.New("product factory price cannot be negative")
	ErrNegativeStock    = errors.New("product stock cannot be negative")
	ErrEmptyProductCode = errors.New("product code cannot be empty")
)

// Product is one catalog entry returned by the supplier products endpoint.
type Product struct {
	ID           int64   `json:"id"`
	GTIN         string  `json:"gtin"`
	Codigo       string  `json:"codigo"`
	Descricao    string  `json:"descricao"`
	PrecoFabrica float64 `json:"preco_fabrica"`
	Estoque      int     `json:"estoque"`
}

// Normalize trims identifiers in place.
func (p *Product) Normalize() {
	p.GTIN = strings.TrimSpace(p.GTIN)
	p.Codigo = strings.TrimSpace(p.Codigo)
}

// Validate checks the catalog constraints on a product.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.GTIN) == "" {
		return ErrEmptyGTIN
	}
	if strings.TrimSpace(p.Codigo) == "" {
		return ErrEmptyProductCode
	}
	if p.PrecoFabrica < 0 {
		return ErrNegativePrice
	}
	if p.Estoque < 0 {
		return ErrNegativeStock
	}
	return nil
}

// Catalog indexes products by GTIN and by internal code for order lookups.
type Catalog struct {
	byGTIN   map[string]Product
	byCodigo map[string]Product
}

// NewCatalog builds a Catalog from the given products.
func NewCatalog(products []Product) *Catalog {
	c := &Catalog{
		byGTIN:   make(map[string]Product, len(products)),
		byCodigo: make(map[string]Product, len(products)),
	}
	for _, p := range products {
		c.byGTIN[p.GTIN] = p
		c.byCodigo[p.Codigo] = p
	}
	return c
}

// Lookup finds the product for an order item, preferring a GTIN match.
func (c *Catalog) Lookup(item OrderItem) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	if p, ok := c.byGTIN[strings.TrimSpace(item.GTIN)]; ok {
		return p, true
	}
	p, ok := c.byCodigo[strings.TrimSpace(item.Codigo)]
	return p, ok
}

// Len returns the number of distinct GTINs in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byGTIN)
}
