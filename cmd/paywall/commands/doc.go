// Package commands holds the paywall command line: serve runs the HTTP
// service, catalog prints the effective offering catalog and version
// prints build information.
package commands
