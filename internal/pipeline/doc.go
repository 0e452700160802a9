// Package pipeline runs scans as a sequence of steps.
//
// A Job moves through CollectStep, AnalyzeStep and the optional
// StoreStep and DumpStep. BatchProcessor runs several jobs at once with a
// concurrency limit and keeps results in input order.
package pipeline
