// Package matrix routes inputs to outputs on the HDMI matrix switcher.
//
// The switcher accepts plain-text crosspoint commands of the form
// "<input>X<output>." over TCP (acknowledged with OK) or UDP (any
// datagram back counts as success; default port 4000).
package matrix
