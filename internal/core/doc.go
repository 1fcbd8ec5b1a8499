// Package core reconciles CSV rows against the items of a remote board.
//
// The package holds the sync engine independent of any transport: the web
// server, the CLI and the directory watcher all drive the same
// [Orchestrator].
//
// # Run Flow
//
//  1. [Orchestrator.Start] resolves the target board through a [ContextResolver].
//  2. [Orchestrator.LoadFile] parses a dropped file into rows.
//  3. [Orchestrator.Sync] fetches the board once with [FetchIndex], splits
//     rows with [Reconcile] and hands both sets to an [Executor].
//  4. The create phase runs to completion, appending minted ids to the
//     run's [RemoteIndex]; the update phase then reads that index.
//  5. The finished [Report] is stored and the orchestrator resets to ready.
//
// Rows are applied strictly one at a time. A failing row is recorded in the
// report and never stops the rows after it; nothing is rolled back.
//
// # Progress
//
// A [Tracker] counts rows that were applied. Subscribers obtained from
// [Orchestrator.Subscribe] receive a [Snapshot] on every state or progress
// change.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]:
//
//   - FILE001-FILE005: file intake
//   - SYNC001-SYNC005: run lifecycle
//   - API001-API006: remote board API
//   - UPL004-UPL005: cancelled or timed out requests
package core
