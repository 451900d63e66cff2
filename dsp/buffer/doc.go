// Package buffer provides a reusable multi-channel sample block and a pool
// for block-based rendering. DSP processors accept raw [][]float64; Block
// owns one contiguous backing array and hands out per-channel views.
package buffer
