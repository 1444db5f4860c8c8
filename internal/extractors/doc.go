// Package extractors holds the content extractor registry. Each subpackage
// implements driven.Extractor for one kind of source material.
//
// Extractors are registered with the Registry at startup; the pipeline asks
// the registry for the best match by kind and MIME type.
package extractors
