// Package types defines the core data model shared across the risposta
// pipeline: questions, retrieved passages, token windows with offset
// mappings, per-window scores, and the consolidated per-question results.
//
// The types here are plain data carriers. Pipeline behavior (windowing,
// scoring, consolidation) lives in the packages that operate on them.
package types
