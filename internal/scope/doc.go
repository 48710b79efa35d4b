// Package scope defines the Device port through which the service drives an
// oscilloscope, together with the trigger status vocabulary, the closed
// attribute table and the normalized instrument errors shared by all drivers.
//
// Drivers:
//   - ds1054z: SCPI over TCP for Rigol DS1000Z series instruments
//   - fake: scripted in-memory device for tests
package scope
