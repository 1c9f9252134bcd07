package domain

import (
	"encoding/json"
	"time"
)

// Callback outcome status values
const (
	CallbackStatusSuccess = "success"
	CallbackStatusWarning = "warning"
	CallbackStatusError   = "error"
)

// CallbackOutcome records what happened when a payload was posted to a
// caller-supplied URL.
type CallbackOutcome struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Sent reports whether the receiver acknowledged the payload.
func (o *CallbackOutcome) Sent() bool {
	return o != nil && o.Status == CallbackStatusSuccess
}

// ScrapingCallbackPayload is posted to the scraping callback URL.
type ScrapingCallbackPayload struct {
	Products    []Product `json:"products"`
	ExtractedAt time.Time `json:"extracted_at"`
	TotalCount  int       `json:"total_count"`
}

// ScrapingResult is stored on a completed scraping task.
type ScrapingResult struct {
	TaskID           string           `json:"task_id"`
	TotalProducts    int              `json:"total_products"`
	Products         []Product        `json:"products"`
	ExtractionTime   float64          `json:"extraction_time"`
	CallbackSent     bool             `json:"callback_sent"`
	CallbackResponse *CallbackOutcome `json:"callback_response"`
}

// OrderResult is stored on a completed order task.
type OrderResult struct {
	TaskID           string               `json:"task_id"`
	OrderID          string               `json:"order_id"`
	Status           string               `json:"status"`
	ChallengeOrderID int64                `json:"challenge_order_id"`
	OrderRegistered  bool                 `json:"order_registered"`
	OrderUpdated     bool                 `json:"order_updated"`
	Purchase         *PurchaseResult      `json:"purchase"`
	Confirmation     PurchaseConfirmation `json:"confirmation"`
	CallbackSent     bool                 `json:"callback_sent"`
	CallbackResponse *CallbackOutcome     `json:"callback_response"`
	ProcessingTime   float64              `json:"processing_time"`
	Message          string               `json:"message"`
}
