// Package models defines the core domain models for the lesson ledger.
//
// # Models
//
//   - Lesson: a booked lesson with immutable identity fields and a
//     forward-only status/payment-status pair
//   - User: a registered account, used as the caller identity for every
//     booking operation
//
// # Design Principles
//
// 1. **Immutable identity**: a lesson's parties, time, and price never change
// after creation; only its status fields do.
// 2. **Integer money**: all amounts are int64 minor units in a single
// currency. No floats anywhere near balances.
// 3. **Avoid circular references**: lessons reference parties by identity
// string, never by pointer.
package models
