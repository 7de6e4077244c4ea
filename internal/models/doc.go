// Package models defines the core domain models for the group ledger.
//
// # Models
//
//   - Group: a shared-expense context owning members, bills and settlements
//   - Member: a user's membership and running balance within one group
//   - Bill / Split: a recorded expense and each member's share of it
//   - Settlement: a recorded transfer between two members
//   - LedgerEntry: one line of a user's personal transaction history
//   - User: a registered account
//
// # Design Principles
//
//  1. Bills, splits and settlements are append-only. Member.Balance and
//     Member.IsActive are the only fields mutated after creation.
//  2. Groups and members are soft-deleted (IsActive=false), never removed.
//  3. Relationships are expressed with ID strings, never pointers.
//  4. Money is decimal.Decimal; floats never carry balances.
package models
