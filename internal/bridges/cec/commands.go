package cec

import (
	"fmt"
	"sort"
	"strings"
)

// CEC opcodes used by the named commands.
const (
	OpcodeUserControlPressed  byte = 0x44
	OpcodeUserControlReleased byte = 0x45
	OpcodeGiveOSDName         byte = 0x46
	OpcodeGivePowerStatus     byte = 0x8F
)

// User control codes carried by OpcodeUserControlPressed.
const (
	keyChannelUp   byte = 0x30
	keyChannelDown byte = 0x31
	keyVolumeUp    byte = 0x41
	keyVolumeDown  byte = 0x42
	keyMute        byte = 0x43
	keyPowerToggle byte = 0x6B
)

// sourceAddress is the logical address cec-client claims by default
// (recording device 1).
const sourceAddress = 1

// commandLines maps a command name to the cec-client lines that perform
// it for a target logical address. Each line runs as its own invocation.
var commandLines = map[string]func(target int) []string{
	"power_on":     func(t int) []string { return []string{fmt.Sprintf("on %d", t)} },
	"power_off":    func(t int) []string { return []string{fmt.Sprintf("standby %d", t)} },
	"standby":      func(t int) []string { return []string{fmt.Sprintf("standby %d", t)} },
	"power_toggle": func(t int) []string { return keyPress(t, keyPowerToggle) },
	"volume_up":    func(t int) []string { return keyPress(t, keyVolumeUp) },
	"volume_down":  func(t int) []string { return keyPress(t, keyVolumeDown) },
	"mute":         func(t int) []string { return keyPress(t, keyMute) },
	"channel_up":   func(t int) []string { return keyPress(t, keyChannelUp) },
	"channel_down": func(t int) []string { return keyPress(t, keyChannelDown) },
	"active_source": func(int) []string {
		return []string{"as"}
	},
}

// Commands returns the supported command names in sorted order.
func Commands() []string {
	names := make([]string, 0, len(commandLines))
	for name := range commandLines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsCommand reports whether name has a CEC mapping.
func IsCommand(name string) bool {
	_, ok := commandLines[name]
	return ok
}

// keyPress is a press followed by a release, as a remote would send.
func keyPress(target int, key byte) []string {
	return []string{
		txLine(target, OpcodeUserControlPressed, key),
		txLine(target, OpcodeUserControlReleased),
	}
}

// txLine formats a raw "tx" frame: header byte (source/destination
// nibbles), opcode, then operands, colon separated in hex.
func txLine(target int, opcode byte, operands ...byte) string {
	parts := make([]string, 0, 2+len(operands))
	parts = append(parts, fmt.Sprintf("%X%X", sourceAddress, target), fmt.Sprintf("%02X", opcode))
	for _, b := range operands {
		parts = append(parts, fmt.Sprintf("%02X", b))
	}
	return "tx " + strings.Join(parts, ":")
}
