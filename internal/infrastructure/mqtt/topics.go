package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the daemon uses.
const TopicPrefix = "sportsbar"

// Topic kinds used under command/ and ack/.
const (
	KindTV     = "tv"
	KindMatrix = "matrix"
	KindAudio  = "audio"
)

// BatchTarget is the device segment of the batch TV command topic.
const BatchTarget = "_batch"

// Topics builds the daemon's topic names:
//
//	sportsbar/command/tv/{device}       control one TV
//	sportsbar/command/tv/_batch         control several TVs
//	sportsbar/command/matrix/route      route a crosspoint
//	sportsbar/command/audio/set         set an audio parameter
//	sportsbar/ack/{kind}/{target}       command outcome
//	sportsbar/state/audio/{param}       retained meter value
//	sportsbar/health/{bridge}           retained bridge health
//	sportsbar/system/status             retained daemon status (and LWT)
type Topics struct{}

// Command returns the command topic for a kind and target.
//
// Example: sportsbar/command/tv/bar-left
func (Topics) Command(kind, target string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, kind, target)
}

// Ack returns the acknowledgement topic for a kind and target.
//
// Example: sportsbar/ack/tv/bar-left
func (Topics) Ack(kind, target string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, kind, target)
}

// AudioState returns the retained meter topic for an audio parameter.
//
// Example: sportsbar/state/audio/ZoneMeter_0
func (Topics) AudioState(param string) string {
	return fmt.Sprintf("%s/state/audio/%s", TopicPrefix, param)
}

// BridgeHealth returns the retained health topic for a bridge.
//
// Example: sportsbar/health/audio
func (Topics) BridgeHealth(bridge string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, bridge)
}

// SystemStatus returns the daemon status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllCommands matches every command topic.
//
// Pattern: sportsbar/command/+/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+/+"
}

// ParseCommand splits a command topic into kind and target.
func (Topics) ParseCommand(topic string) (kind, target string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefix+"/command/")
	if !found {
		return "", "", false
	}
	kind, target, found = strings.Cut(rest, "/")
	if !found || kind == "" || target == "" || strings.Contains(target, "/") {
		return "", "", false
	}
	return kind, target, true
}
