// Package analysis turns a waveform into a time-segmented emotional
// profile.
//
// The Analyzer frames the waveform, drops frames without speech, sends
// the rest to a Classifier and returns the predictions in time order.
// Summarize reduces predictions to label counts, percentages, average
// confidence and analysed duration. Service ties loading, analysis and
// aggregation into one run and produces a Report.
//
// Per-frame classifier failures are logged and skipped; only invalid
// framing, load failures and cancellation are returned as errors.
package analysis
