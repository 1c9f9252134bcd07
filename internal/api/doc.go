// Package api adapts HTTP requests to the task engine: it decodes
// submissions, hands them to the dispatcher, serves status views and maps
// internal errors to safe HTTP responses.
package api
