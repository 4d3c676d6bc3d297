// Package artifact materializes the per-patent directory tree
// (<base>/<id>_data/) and lists the identifiers found there.
//
// Metadata is rewritten on every run. Every other artifact is written only
// when absent, so repeated runs for the same identifier perform no
// additional downloads.
package artifact
