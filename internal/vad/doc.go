// Package vad decides whether an analysis frame contains speech using
// root-mean-square energy and zero-crossing rate thresholds.
package vad
