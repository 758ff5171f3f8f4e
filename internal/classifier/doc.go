// Package classifier defines the acoustic emotion classifier used by the
// analysis pipeline and an HTTP client for a remote model server.
package classifier
