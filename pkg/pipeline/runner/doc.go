// Package runner executes one external process per stage and classifies its outcome.
//
// The exit status is authoritative: status 0 is a success, anything else is a failure whose
// reason is the captured standard error. Output is never parsed to decide success. A runner
// never retries and never creates directories on behalf of the command.
package runner
