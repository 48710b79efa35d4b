// Package command dispatches named operations to the instrument and the
// capture loop.
//
// The operation set is closed: names are looked up in a fixed table, the
// positional argument count is checked before anything runs, and every
// failure is reduced to an error envelope carrying one of a small set of
// codes. Each dispatch is audited.
package command
