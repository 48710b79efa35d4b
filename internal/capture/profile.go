package capture

import (
	"fmt"
	"strconv"

	"github.com/jupitervolta/ds1054z/internal/config"
)

// SetupCommands expands a profile into the SCPI writes that apply it.
// Probe ratio precedes scale and offset because the scope rescales them
// when the ratio changes. Empty fields are left at the instrument's value.
func SetupCommands(p config.Profile) []string {
	var cmds []string
	add := func(format string, args ...interface{}) {
		cmds = append(cmds, fmt.Sprintf(format, args...))
	}

	if p.AcquireType != "" {
		add(":ACQuire:TYPE %s", p.AcquireType)
	}
	if p.MemoryDepth != "" {
		add(":ACQuire:MDEPth %s", p.MemoryDepth)
	}

	if p.TimebaseMode != "" {
		add(":TIMebase:MODE %s", p.TimebaseMode)
	}
	add(":TIMebase:DELay:ENABle %s", onOff(p.TimebaseDelay))
	add(":TIMebase:MAIN:OFFSet %s", formatFloat(p.TimebaseOffset))
	if p.TimebaseScale > 0 {
		add(":TIMebase:MAIN:SCALe %s", formatFloat(p.TimebaseScale))
	}

	for _, ch := range p.Channels {
		prefix := fmt.Sprintf(":CHANnel%d", ch.Channel)
		if ch.Coupling != "" {
			add("%s:COUPling %s", prefix, ch.Coupling)
		}
		if ch.BandwidthLimit != "" {
			add("%s:BWLimit %s", prefix, ch.BandwidthLimit)
		}
		add("%s:INVert %s", prefix, onOff(ch.Invert))
		if ch.Units != "" {
			add("%s:UNITs %s", prefix, ch.Units)
		}
		if ch.Probe > 0 {
			add("%s:PROBe %s", prefix, formatFloat(ch.Probe))
		}
		if ch.Scale > 0 {
			add("%s:SCALe %s", prefix, formatFloat(ch.Scale))
		}
		add("%s:OFFSet %s", prefix, formatFloat(ch.Offset))
	}

	t := p.Trigger
	if t.Mode != "" {
		add(":TRIGger:MODE %s", t.Mode)
	}
	if t.Source != "" {
		add(":TRIGger:EDGe:SOURce %s", t.Source)
	}
	if t.Slope != "" {
		add(":TRIGger:EDGe:SLOPe %s", t.Slope)
	}
	add(":TRIGger:NREJect %s", onOff(t.NoiseReject))
	if t.Coupling != "" {
		add(":TRIGger:COUPling %s", t.Coupling)
	}
	add(":TRIGger:EDGe:LEVel %s", formatFloat(t.Level))

	return cmds
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
