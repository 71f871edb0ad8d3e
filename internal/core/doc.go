// Package core provides the business logic for automation record import and sync.
//
// This package holds all domain logic independent of any UI or transport
// layer. It is used by the web handlers and the automationctl CLI alike.
//
// # Architecture
//
// An import flows through four stages:
//
//   - Row Validator: [RowValidator] turns decoded rows into canonical
//     [Record] values, collecting "Row <n>: ..." errors without stopping.
//   - Sync Planner: [PlanSync] partitions valid rows against the current
//     collection into creates, updates and (in sync mode) deletes.
//   - Batch Executor: [Executor] sends the plan to the backend one request
//     at a time, creates first, then updates, then deletes.
//   - Service: [Service] stores analyzed files as sessions, starts batches in
//     the background and fans progress out to subscribers.
//
// # Field Catalog
//
// Every recognized column is described by a [FieldSpec] in the registry.
// Import headers resolve by canonical key or display label, case-insensitively,
// so an exported CSV imports back unchanged:
//
//	name, ok := core.ResolveHeader("PreProd Deploy Date") // "preprod_deploy_date"
//
// Nested sections (people, environments, test data, metrics, artifacts) are
// flattened into one column per role or attribute.
//
// # Sync Flow
//
//  1. Client decodes a file and calls [Service.Analyze] with the rows
//  2. The preview shows the plan summary, validation errors and duplicates
//  3. Client calls [Service.Execute], acknowledging errors and confirming
//     high-risk deletes as needed
//  4. Progress is broadcast to subscribers via [Service.SubscribeProgress]
//  5. The final [Tally] is available from [Service.Result] and the history
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - VAL001-VAL008: Validation errors (formats, required fields, duplicates, filters, modes)
//   - FILE001-FILE006: File errors (size, format)
//   - SYNC001-SYNC007: Sync errors (sessions, confirmation, concurrency)
//   - BE001-BE004: Backend errors (connectivity, rejected requests)
//   - RATE001: Rate limiting
//   - ERR000: Unknown/fallback error
package core
