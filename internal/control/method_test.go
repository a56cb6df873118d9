package control

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/sportsbar-av/internal/device"
)

func TestSelectMethod(t *testing.T) {
	both := device.TV{ID: "tv", SupportsCEC: true, SupportsIR: true, IRAddress: "1:1"}
	cecOnly := device.TV{ID: "tv", SupportsCEC: true}
	irOnly := device.TV{ID: "tv", SupportsIR: true, IRAddress: "1:1"}
	prefersIR := both
	prefersIR.PreferredMethod = device.MethodIR

	tests := []struct {
		name     string
		tv       device.TV
		brand    string
		command  string
		override Method
		want     Method
		wantErr  error
	}{
		{name: "override wins", tv: both, brand: "sony", command: "mute", override: MethodIR, want: MethodIR},
		{name: "override unsupported", tv: cecOnly, brand: "sony", command: "mute", override: MethodIR, wantErr: ErrMethodUnsupported},
		{name: "device preference", tv: prefersIR, brand: "sony", command: "power_on", want: MethodIR},
		{name: "sony prefers cec", tv: both, brand: "sony", command: "volume_up", want: MethodCEC},
		{name: "samsung volume over ir", tv: both, brand: "samsung", command: "volume_down", want: MethodIR},
		{name: "samsung power over cec", tv: both, brand: "samsung", command: "power_on", want: MethodCEC},
		{name: "vizio wakes over ir", tv: both, brand: "vizio", command: "power_on", want: MethodIR},
		{name: "hisense prefers ir", tv: both, brand: "hisense", command: "power_off", want: MethodIR},
		{name: "ir brand without ir", tv: cecOnly, brand: "vizio", command: "power_on", want: MethodCEC},
		{name: "cec brand without cec", tv: irOnly, brand: "lg", command: "mute", want: MethodIR},
		{name: "unknown brand", tv: both, brand: "acme", command: "mute", want: MethodCEC},
		{name: "no path", tv: device.TV{ID: "tv"}, brand: "sony", command: "mute", wantErr: ErrNoControlPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectMethod(&tt.tv, LookupProfile(tt.brand), tt.command, tt.override)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SelectMethod() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectMethod() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("SelectMethod() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"", "", false},
		{"auto", "", false},
		{"cec", MethodCEC, false},
		{" IR ", MethodIR, false},
		{"bluetooth", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMethod(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMethod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookupProfile(t *testing.T) {
	sony := LookupProfile("SONY")
	if sony.Brand != "sony" || sony.PowerOnDelay != 2*time.Second {
		t.Errorf("LookupProfile(SONY) = %+v", sony)
	}

	unknown := LookupProfile("acme")
	if unknown.Brand != "default" || unknown.PreferredMethod != BrandCEC {
		t.Errorf("LookupProfile(acme) = %+v", unknown)
	}

	for _, b := range Brands() {
		if p := LookupProfile(b); p.PowerOnDelay <= 0 || p.VolumeDelay <= 0 {
			t.Errorf("profile %q has unset delays: %+v", b, p)
		}
	}
}

func TestDelayFor(t *testing.T) {
	p := LookupProfile("sony")
	tests := map[string]time.Duration{
		"power_on":      p.PowerOnDelay,
		"power_off":     p.PowerOffDelay,
		"standby":       p.PowerOffDelay,
		"active_source": p.InputSwitchDelay,
		"mute":          p.VolumeDelay,
		"channel_up":    p.VolumeDelay,
	}
	for cmd, want := range tests {
		if got := p.DelayFor(cmd); got != want {
			t.Errorf("DelayFor(%q) = %v, want %v", cmd, got, want)
		}
	}
}
