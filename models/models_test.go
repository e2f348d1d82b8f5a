package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeFromCode(t *testing.T) {
	assert.Equal(t, ModeManual, ModeFromCode(1))
	assert.Equal(t, ModeTeachCheck, ModeFromCode(2))
	assert.Equal(t, ModeAuto, ModeFromCode(3))
	assert.Equal(t, ModeUnknown, ModeFromCode(0))
	assert.Equal(t, ModeUnknown, ModeFromCode(-1))
}

func TestBaseInfoIdentifier(t *testing.T) {
	info := BaseInfo{Serial: "SN 001", RobotType: "VS-060/A", VRCVersion: "2.16.1"}
	assert.Equal(t, "SN_001_VS-060_A_2_16_1", info.Identifier())

	info = BaseInfo{Serial: `a:b*c?`, RobotType: `"<x>|`, VRCVersion: `C:\v`}
	assert.Equal(t, "a_b_c____x___C__v", info.Identifier())
}
