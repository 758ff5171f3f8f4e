// Package audio loads recorded speech into normalised mono waveforms and
// splits them into fixed-length overlapping frames for analysis.
// It also encodes frames as 16-bit PCM WAV for the remote classifier.
package audio
