// Package cec controls HDMI-CEC devices through a Pulse-Eight style USB
// adapter, driven by the cec-client command-line tool.
//
// Every action spawns one short-lived cec-client in single-command mode:
//
//	echo "on 0" | cec-client -s -d 8 /dev/ttyACM0
//
// cec-client reports success only through its output, so SendSucceeded
// looks for TRAFFIC lines or a power status change. That check is the one
// place the heuristic lives.
//
// The adapter is wired to one matrix input; callers route that input to
// the target TV's output before sending (see package control).
package cec
