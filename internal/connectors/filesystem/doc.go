// Package filesystem reads file-backed sources from local disk and watches
// an inbox directory for new material.
package filesystem
