// Package sync implements the tiny-sync reconciliation job.
//
// One Orchestrator.Run call is one invocation: it gates the ERP credential,
// optionally performs the connectivity test, fetches a single page of remote
// records through a call-budgeted erp.Client, and reconciles each record
// against local storage.
//
// # Reconciliation
//
// For every remote record, in the order the ERP returned them:
//
//   - a ContentHash is computed over the entity's hashed field subset
//   - the local row is looked up by its linkage id (tiny_<entity>_id)
//   - a matching row whose stored hash equals the fresh hash is skipped
//   - otherwise a create or update is recorded in the run summary and,
//     unless the run is a dry run, written to the store
//
// Dry runs produce exactly the summary an apply run would.
//
// # Failure model
//
// Writes are independent point writes. A failure mid-loop aborts the run
// without writing a run log, and rows written before the failure stay
// committed. Local rows that were never linked to an ERP id are not matched
// by any other field, so they are duplicated when the same entity exists
// remotely.
//
// # Pagination
//
// The loop consumes exactly one Page produced by a PageStrategy. The default
// SinglePage strategy fetches the first remote page and keeps at most 50
// records.
package sync
