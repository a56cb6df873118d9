// Package control decides how to reach a TV and carries out commands on it.
//
// A TV can be driven two ways. The CEC path routes the matrix input that
// carries the CEC adapter to the TV's output, waits for the brand's settle
// time, then sends the command on the bus. The IR path hands the command to
// the external IR service. SelectMethod picks the first path from the
// device's preference and its brand profile; the Orchestrator retries once
// on the other path when the first fails, except after a routing failure.
//
// Bridge exposes the orchestrator, the matrix and the audio processor on
// MQTT command topics and publishes an ack for every command.
package control
