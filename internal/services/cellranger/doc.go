// Package cellranger wraps the cellranger command line for the invocation
// modes the pipeline drives: mkfastq, multi, vdj, count, and aggr.
//
// Every invocation is synchronous and capture-persisting via execx. The
// client additionally polls the _uiport marker cellranger writes at startup
// and reports the UI URL to the operator; that reporting is best effort and
// never affects the invocation outcome once the process exits cleanly.
package cellranger
