// Package server implements the HTTP API of the emotion profile service.
// It accepts recordings for analysis, keeps the most recent reports in memory
// and exposes health, configuration, statistics and Prometheus endpoints.
package server
