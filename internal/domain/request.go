package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// OrderItem is one line of an order request.
type OrderItem struct {
	GTIN       string `json:"gtin"       validate:"required"`
	Codigo     string `json:"codigo"     validate:"required"`
	Quantidade int    `json:"quantidade" validate:"gte=1"`
}

// ScrapingRequest asks for the supplier catalog to be extracted and delivered
// to CallbackURL.
type ScrapingRequest struct {
	Usuario     string `json:"usuario"      validate:"required"`
	Senha       string `json:"senha"        validate:"required"`
	CallbackURL string `json:"callback_url" validate:"required,http_url"`
}

// OrderRequest asks for an order to be placed with the supplier and the
// confirmation delivered to CallbackURL.
type OrderRequest struct {
	Usuario     string      `json:"usuario"      validate:"required"`
	Senha       string      `json:"senha"        validate:"required"`
	IDPedido    string      `json:"id_pedido"    validate:"required"`
	Produtos    []OrderItem `json:"produtos"     validate:"required,min=1,dive"`
	CallbackURL string      `json:"callback_url" validate:"required,http_url"`
}

// SubmitRequest is the envelope accepted by the dispatcher. Kind is optional;
// when empty it is inferred from the presence of order fields.
type SubmitRequest struct {
	Kind        TaskKind    `json:"kind,omitempty"`
	Usuario     string      `json:"usuario"`
	Senha       string      `json:"senha"`
	CallbackURL string      `json:"callback_url"`
	IDPedido    string      `json:"id_pedido,omitempty"`
	Produtos    []OrderItem `json:"produtos,omitempty"`
}

// hasOrderShape reports whether any order-only field is present.
func (r *SubmitRequest) hasOrderShape() bool {
	return r.IDPedido != "" || r.Produtos != nil
}

// ResolveKind returns the declared kind, or infers it by shape when absent.
// A declared kind that contradicts the body shape is a validation error.
func (r *SubmitRequest) ResolveKind() (TaskKind, error) {
	kind := TaskKind(strings.ToLower(strings.TrimSpace(string(r.Kind))))

	switch kind {
	case "":
		if r.hasOrderShape() {
			return TaskKindOrder, nil
		}
		return TaskKindScraping, nil
	case TaskKindScraping:
		if r.hasOrderShape() {
			return "", fmt.Errorf("%w: scraping request must not carry order fields", ErrValidation)
		}
		return TaskKindScraping, nil
	case TaskKindOrder:
		return TaskKindOrder, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrValidation, r.Kind)
	}
}

// Scraping projects the envelope into a ScrapingRequest.
func (r *SubmitRequest) Scraping() ScrapingRequest {
	return ScrapingRequest{
		Usuario:     r.Usuario,
		Senha:       r.Senha,
		CallbackURL: r.CallbackURL,
	}
}

// Order projects the envelope into an OrderRequest.
func (r *SubmitRequest) Order() OrderRequest {
	items := make([]OrderItem, len(r.Produtos))
	copy(items, r.Produtos)
	return OrderRequest{
		Usuario:     r.Usuario,
		Senha:       r.Senha,
		IDPedido:    r.IDPedido,
		Produtos:    items,
		CallbackURL: r.CallbackURL,
	}
}

// Validate checks the scraping request fields.
func (r ScrapingRequest) Validate() error {
	return validateStruct(r)
}

// Validate checks the order request fields, including every item.
func (r OrderRequest) Validate() error {
	return validateStruct(r)
}

// HasRequiredFields reports whether every field the order pipeline needs is
// present, without the format checks of Validate.
func (r OrderRequest) HasRequiredFields() bool {
	return r.Usuario != "" && r.Senha != "" && r.IDPedido != "" &&
		len(r.Produtos) > 0 && r.CallbackURL != ""
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: invalid fields: %s", ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
