// Package internaldefs exposes stable metric name and bucket definitions
// shared by exporter implementations.
//
// Counter names and histogram bounds live here so the Prometheus and OTel
// exporters stay aligned; a definition change affects all exporters at once.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
