// Package testutil holds deterministic helpers shared by package tests:
// build id generators, a discarding logger and small stories built with
// the ast constructors.
package testutil
