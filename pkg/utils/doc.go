// Package utils provides shared helpers used across the risposta project:
// vector math and top-K selection for passage ranking, lenient CSV and YAML
// unmarshalling for corpus and manifest ingestion, UUID generation, and
// panic-safe concurrency primitives.
//
// Nothing in this package knows about questions or passages directly; it is
// a toolbox for the packages that do.
package utils
