// Package specification provides immutable filter, sort, paging and include
// specifications consumed by the repository query pipeline.
package specification
