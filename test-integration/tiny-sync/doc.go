// Package integration provides integration tests for the atelier-sync server.
// They run the complete application against a fake ERP and the in-memory
// store, covering on-demand syncs, the run log and scheduled runs.
package integration
