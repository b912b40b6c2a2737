// Package comparer provides equality comparers that look only at a chosen
// set of fields, and a Distinct helper built on them.
package comparer
