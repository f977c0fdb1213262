// Package fakes provides in-memory implementations of the identity provider
// and secret store interfaces with scriptable failure injection, for unit
// tests that exercise the rotation protocol without external services.
package fakes
