// Package models defines the core domain models for Patungan.
//
// # Models
//
//   - Receipt: normalized structured record of one scanned purchase document
//   - ReceiptItem: a purchased line item with unit price and quantity
//   - ReceiptTotals: receipt-level amounts (total, discount, service charge, tax)
//   - Participant: one person splitting the bill
//   - Assignments: sparse record of which participant claims how many units of which item
//
// # Design Principles
//
//  1. **One bill, one session**: models describe a single in-memory bill; there is no
//     persistence and no cross-session identity.
//  2. **Exact money**: all monetary fields use shopspring/decimal so the
//     "everything assigned" reconciliation check is an exact comparison, never an
//     epsilon test over floats.
//  3. **Weak references**: Assignments refer to participants and items by ID value.
//     A dangling ID after an item or participant is removed reads as "not found",
//     never as a crash.
package models
