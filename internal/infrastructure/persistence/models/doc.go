// Package models contains GORM persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// of ORM concerns.
//
// Structure:
//   - base.go: shared columns (BaseModel, TenantModel)
//   - source.go: source document tables owned by the ERP (read only for the ledger)
//   - fact.go: commitment and actual fact tables
//   - backfill_run.go: reconciliation run history
package models
