package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jupitervolta/ds1054z/internal/config"
)

func indexOf(cmds []string, cmd string) int {
	for i, c := range cmds {
		if c == cmd {
			return i
		}
	}
	return -1
}

func TestSetupCommandsDefaultProfile(t *testing.T) {
	cmds := SetupCommands(config.DefaultProfile())

	assert.Equal(t, ":ACQuire:TYPE NORMal", cmds[0])
	assert.Equal(t, ":ACQuire:MDEPth AUTO", cmds[1])

	for _, want := range []string{
		":TIMebase:MODE MAIN",
		":TIMebase:DELay:ENABle OFF",
		":TIMebase:MAIN:OFFSet 0.0002",
		":TIMebase:MAIN:SCALe 5e-05",
		":CHANnel1:COUPling DC",
		":CHANnel1:UNITs VOLTage",
		":CHANnel1:PROBe 1000",
		":CHANnel1:SCALe 500",
		":CHANnel1:OFFSet -1000",
		":CHANnel2:UNITs AMPere",
		":CHANnel2:PROBe 10",
		":CHANnel2:OFFSet -2",
		":TRIGger:MODE EDGE",
		":TRIGger:EDGe:SOURce CHANnel2",
		":TRIGger:EDGe:SLOPe POSitive",
		":TRIGger:NREJect ON",
		":TRIGger:COUPling DC",
		":TRIGger:EDGe:LEVel 0.5",
	} {
		assert.Contains(t, cmds, want)
	}

	assert.Less(t, indexOf(cmds, ":CHANnel1:PROBe 1000"), indexOf(cmds, ":CHANnel1:SCALe 500"))
	assert.Less(t, indexOf(cmds, ":CHANnel1:SCALe 500"), indexOf(cmds, ":CHANnel1:OFFSet -1000"))
}

func TestSetupCommandsSkipsEmptyFields(t *testing.T) {
	cmds := SetupCommands(config.Profile{
		Channels: []config.ChannelProfile{{Channel: 3}},
	})

	assert.NotContains(t, cmds, ":ACQuire:TYPE ")
	assert.Contains(t, cmds, ":CHANnel3:INVert OFF")
	assert.Contains(t, cmds, ":CHANnel3:OFFSet 0")
	assert.NotContains(t, cmds, ":CHANnel3:PROBe 0")
}
