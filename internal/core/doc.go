// Package core holds the domain model shared by every stage of the
// Moodle log enrichment pipeline.
//
// The package has no dependency on any other internal package so that the
// detection, mapping, cleaning and classification stages can all speak the
// same types without import cycles.
//
// # Data Model
//
//   - [CSVFormat]: encoding, delimiter and shape of an input file, detected once.
//   - [ColumnMapping]: which observed header feeds each canonical [Field].
//   - [RawEvent]: one log row after column mapping and timestamp parsing.
//   - [EnrichedEvent]: a RawEvent plus its Bloom classification.
//
// # Canonical Fields
//
// Every supported export maps onto nine fields. Six are mandatory:
//
//	time, user_full_name, event_name, component, event_context, description
//
// and three are optional:
//
//	affected_user, origin, ip_address
//
// # Error Handling
//
// Stages fail fast with a typed [*Error] whose [Kind] identifies the failure
// class (encoding, delimiter, missing column, ...). Callers branch with
// errors.Is against the exported sentinels:
//
//	if errors.Is(err, core.ErrRequiredColumnMissing) { ... }
//
// and the HTTP layer turns any error into a coded [UserMessage] with [MapError].
package core
