// Package expression models predicate lambdas as immutable node trees that
// can be composed, rewritten, compiled into closures and translated to SQL.
package expression
