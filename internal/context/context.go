// Package context turns a caller's prompt, optional image and prior turns into
// the ordered message list sent to the completion backend, and folds replies
// back into a caller-held history.
//
// Nothing in this package holds state between calls. History is passed in and
// returned by value.
package context
