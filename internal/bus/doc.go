// Package bus multicasts values to independent subscribers.
//
// A Bus moves through NotStarted -> Active -> Disposed; Disposed is terminal.
// While Active, Publish delivers the identical value to every subscriber in
// registration order. A panicking subscriber does not stop delivery to the
// ones after it; its failure is collected and returned once the whole pass
// has finished.
package bus
