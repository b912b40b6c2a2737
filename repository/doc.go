// Package repository provides a generic specification-driven repository over
// a unit-of-work DataContext. Filters are translated from expression trees to
// Bun where clauses; mutations are tracked and written on the outermost commit.
package repository
