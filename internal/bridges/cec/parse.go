package cec

import (
	"bufio"
	"strconv"
	"strings"
)

// Output markers cec-client prints when a frame reached the bus.
const (
	markerTraffic      = "TRAFFIC"
	markerPowerChanged = "power status changed"
)

// SendSucceeded reports whether cec-client output shows the command was
// put on the bus. cec-client exits 0 whether or not anything happened, so
// the output text is the only signal available.
func SendSucceeded(output string) bool {
	return strings.Contains(output, markerTraffic) ||
		strings.Contains(strings.ToLower(output), markerPowerChanged)
}

// Adapter is one USB-CEC adapter reported by "cec-client -l".
type Adapter struct {
	Port      string
	Type      string
	VendorID  string
	ProductID string
	Firmware  string
}

// Device is one node found by a bus scan.
type Device struct {
	LogicalAddress  int
	Type            string
	PhysicalAddress string
	Vendor          string
	OSDName         string
	PowerStatus     string
	CECVersion      string
	ActiveSource    bool
}

// parseAdapters reads the "-l" listing. Each adapter block starts with a
// "device:" line followed by "key: value" lines.
func parseAdapters(output string) []Adapter {
	var (
		adapters []Adapter
		cur      *Adapter
	)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, val, ok := splitField(scanner.Text())
		if !ok {
			continue
		}
		switch key {
		case "device":
			adapters = append(adapters, Adapter{})
			cur = &adapters[len(adapters)-1]
		case "com port":
			if cur != nil {
				cur.Port = val
			}
		case "type":
			if cur != nil {
				cur.Type = val
			}
		case "vendor id":
			if cur != nil {
				cur.VendorID = val
			}
		case "product id":
			if cur != nil {
				cur.ProductID = val
			}
		case "firmware version":
			if cur != nil {
				cur.Firmware = val
			}
		}
	}

	// Drop blocks without a port; cec-client prints "device:" headers in
	// a few other places.
	out := adapters[:0]
	for _, a := range adapters {
		if a.Port != "" {
			out = append(out, a)
		}
	}
	return out
}

// parseScan reads the output of the "scan" command:
//
//	device #0: TV
//	address:       0.0.0.0
//	vendor:        Samsung
//	osd string:    TV
//	power status:  on
func parseScan(output string) []Device {
	var (
		devices []Device
		cur     *Device
	)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if rest, ok := strings.CutPrefix(line, "device #"); ok {
			num, typ, _ := strings.Cut(rest, ":")
			addr, err := strconv.Atoi(strings.TrimSpace(num))
			if err != nil {
				cur = nil
				continue
			}
			devices = append(devices, Device{LogicalAddress: addr, Type: strings.TrimSpace(typ)})
			cur = &devices[len(devices)-1]
			continue
		}
		if cur == nil {
			continue
		}

		key, val, ok := splitField(line)
		if !ok {
			continue
		}
		switch key {
		case "address":
			cur.PhysicalAddress = val
		case "vendor":
			cur.Vendor = val
		case "osd string":
			cur.OSDName = val
		case "power status":
			cur.PowerStatus = val
		case "cec version":
			cur.CECVersion = val
		case "active source":
			cur.ActiveSource = val == "yes"
		}
	}
	return devices
}

// parsePowerStatus extracts the status from "power status: standby".
func parsePowerStatus(output string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, val, ok := splitField(scanner.Text())
		if ok && key == "power status" && val != "" {
			return val, true
		}
	}
	return "", false
}

// splitField splits "key:   value" into a lower-cased key and trimmed value.
func splitField(line string) (string, string, bool) {
	key, val, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(val), true
}
