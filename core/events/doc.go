// Package events defines the simulation events emitted on the event bus.
//
// Available event types:
//   - RunEvent: a simulation finished, successfully or not
package events
