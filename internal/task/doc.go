// Package task manages background job queuing, processing, and lifecycle.
// It accepts scraping and order submissions, runs each one through its
// pipeline on a bounded worker pool, records progress at named checkpoints,
// and projects task records into the status view served to pollers.
package task
