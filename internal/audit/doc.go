// Package audit records every dispatched command as one JSON line.
//
// Entries carry the caller, the operation and its arguments, the outcome code
// and the latency. The file is size-rotated.
package audit
