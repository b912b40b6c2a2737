// Package uow coordinates nested units of work over a single Bun transaction.
//
// A DataContext is an explicit handle that owns the unit-of-work stack, the
// ambient transaction and the change tracker. Only the outermost unit of work
// talks to the store: nested commits return 0 and defer to it, and a rollback
// at any depth dooms the whole transaction.
package uow
