// Package dataset loads evaluation inputs from disk: passage corpora,
// question sets, and pre-retrieved passage lists.
//
// Corpora come as id-to-document JSON maps or flat CSV rows. Question sets
// come as SQuAD-style JSON or flat YAML manifests. JSON inputs that fail
// strict decoding get one repair pass before being rejected, since corpus
// dumps in the wild routinely carry trailing commas or stray quotes.
//
// All loaders validate on the way in: empty passage or question texts and
// duplicate question ids are fatal, never silently dropped.
package dataset
