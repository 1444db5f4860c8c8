// Package connectors holds the adapters that reach outside the process for
// raw material: the GitHub API (github), the public web (web) and the
// local filesystem (filesystem). Extractors depend on them through the
// driven ports; the composition root wires the concrete types.
package connectors
