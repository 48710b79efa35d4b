// Package capture runs the single-shot trigger loop.
//
// The orchestrator applies the instrument profile, arms a single
// acquisition, polls the trigger status and, on trigger, saves the waveform
// and a rendered screenshot under one shared timestamp before rearming.
// All instrument access goes through a device.Handle, so the loop can run
// next to the command dispatcher.
package capture
