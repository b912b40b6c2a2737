// Package xmlser renders values as indented XML documents to strings,
// readers and files.
package xmlser
