package servo

import "fmt"

// ServoMode is the command kind, sent in the upper byte of the
// arbitration identifier
type ServoMode uint8

const (
	DutyCycle            ServoMode = 0
	CurrentLoop          ServoMode = 1
	CurrentBrake         ServoMode = 2
	VelocityLoop         ServoMode = 3
	PositionLoop         ServoMode = 4
	SetOrigin            ServoMode = 5
	PositionVelocityLoop ServoMode = 6
)

var modeDescription = map[ServoMode]string{
	DutyCycle:            "DUTY_CYCLE",
	CurrentLoop:          "CURRENT_LOOP",
	CurrentBrake:         "CURRENT_BRAKE",
	VelocityLoop:         "VELOCITY_LOOP",
	PositionLoop:         "POSITION_LOOP",
	SetOrigin:            "SET_ORIGIN",
	PositionVelocityLoop: "POSITION_VELOCITY_LOOP",
}

func (mode ServoMode) String() string {
	description, ok := modeDescription[mode]
	if ok {
		return description
	}
	return fmt.Sprintf("UNKNOWN_MODE(%d)", uint8(mode))
}

func (mode ServoMode) Valid() bool {
	return mode <= PositionVelocityLoop
}

// Build the identifier of a command frame : mode in bits 15..8, motor id in bits 7..0
func ArbitrationID(mode ServoMode, motorId uint8) uint32 {
	return uint32(mode)<<8 | uint32(motorId)
}

// Recover mode and motor id from an identifier built with [ArbitrationID]
func SplitArbitrationID(id uint32) (ServoMode, uint8) {
	return ServoMode((id >> 8) & 0xFF), uint8(id & 0xFF)
}
