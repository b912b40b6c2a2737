// Package ioc is a small dependency-injection facade over go.uber.org/dig
// with support for named construction parameters.
package ioc
