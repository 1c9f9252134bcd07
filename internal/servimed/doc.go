// Package servimed contains the outbound clients the task pipelines depend on:
// the OAuth2 credential verifier, the product extractor, the order fulfiller,
// the order-management registry and the callback dispatcher.
//
// Every client takes an explicit *http.Client and applies its own per-call
// timeout through the request context. Extraction and order registration retry
// transient failures (network errors, 429 and 5xx responses) under a
// RetryPolicy; every other call is attempted once.
package servimed
