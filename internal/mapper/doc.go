// Package mapper turns documents into records.
//
// A wide document carries all readings of one moment; WideToWide extracts
// the declared pointers, optionally discovers further leaves, and adds
// constants, producing one record per document. A narrow document carries a
// single reading; NarrowToWide buffers readings and emits a record whenever
// a column repeats, on the assumption that a repeat marks the next sample.
//
// Every value passes through Processor: preprocess expression, backend
// escaping, postprocess expression. Postprocess sees the escaped text.
package mapper
