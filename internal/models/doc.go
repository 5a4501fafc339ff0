// Package models defines the core domain records for the Exsplitter backend.
//
// # Records
//
//   - Trip: a named group of members sharing expenses, with a default
//     settlement currency
//   - Member: a person identified across trips; removal never deletes
//     historical expenses or payments referencing the id
//   - Expense: an immutable record of who paid and who owes which share
//   - Payment: an append-only record of money physically handed from a
//     debtor to a creditor, optionally allocated to specific expenses
//   - PaidMark: an itemized "this line is settled" toggle per
//     (debtor, creditor, expense)
//   - PairState: the authoritative settlement state per ordered
//     (debtor, creditor) pair: the fully-settled flag and the epoch watermark
//
// # Design principles
//
//  1. **Append-only identity references**: expenses and payments keep member
//     ids even after the member leaves; the ledger is audit-first.
//  2. **Amounts stay in their original currency**: conversion is applied at
//     aggregation time, never baked into stored records.
//  3. **Avoid circular references**: records relate through ID strings, not
//     pointers.
//  4. **Derived state is not stored**: balances, transfers and settlement
//     status are computed from the records; only the fully-settled flag and
//     the epoch are authoritative.
package models
