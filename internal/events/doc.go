// Package events carries task lifecycle notifications from the task engine to
// observers such as metrics.
//
// The primary components are:
// - TaskEvent: a lifecycle change of one task (submitted, checkpoint, terminal)
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
