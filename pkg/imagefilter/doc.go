// Package imagefilter prepares captured images for reconstruction. Every image of a folder
// goes through the same optional transforms, in parallel, and is written under the same
// name to an output folder.
//
// A file that cannot be read, transformed or written is reported and skipped; it never
// stops the rest of the batch.
package imagefilter
