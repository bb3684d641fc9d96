package servo

import (
	"encoding/binary"
	"fmt"
)

const StatusLength = 8

// Status scale factors
const (
	StatusPositionScale = 0.1
	StatusSpeedScale    = 10.0
	StatusCurrentScale  = 0.01
)

// Telemetry sent back by the motor
type Status struct {
	Position    float64 // degrees
	Speed       float64 // ERPM
	Current     float64 // amperes
	Temperature int8    // °C
	ErrorCode   uint8
}

// Decode a status payload. Returns false if fewer than 8 bytes are given,
// which is not considered an error. Extra bytes are ignored
func DecodeStatus(data []byte) (Status, bool) {
	if len(data) < StatusLength {
		return Status{}, false
	}
	return Status{
		Position:    float64(int16(binary.BigEndian.Uint16(data[0:2]))) * StatusPositionScale,
		Speed:       float64(int16(binary.BigEndian.Uint16(data[2:4]))) * StatusSpeedScale,
		Current:     float64(int16(binary.BigEndian.Uint16(data[4:6]))) * StatusCurrentScale,
		Temperature: int8(data[6]),
		ErrorCode:   data[7],
	}, true
}

func (s Status) Fault() FaultCode {
	return FaultCode(s.ErrorCode)
}

func (s Status) String() string {
	return fmt.Sprintf("position=%.1f° speed=%.0f erpm current=%.2fA temperature=%d°C error=%v",
		s.Position, s.Speed, s.Current, s.Temperature, s.Fault())
}

// Error code reported in the last byte of the status frame
type FaultCode uint8

const (
	FaultNone FaultCode = iota
	FaultMotorOverTemperature
	FaultOverCurrent
	FaultOverVoltage
	FaultUnderVoltage
	FaultEncoder
	FaultMosfetOverTemperature
	FaultMotorLock
)

var faultDescription = map[FaultCode]string{
	FaultNone:                  "no fault",
	FaultMotorOverTemperature:  "motor over-temperature",
	FaultOverCurrent:           "over-current",
	FaultOverVoltage:           "over-voltage",
	FaultUnderVoltage:          "under-voltage",
	FaultEncoder:               "encoder fault",
	FaultMosfetOverTemperature: "MOSFET over-temperature",
	FaultMotorLock:             "motor locked",
}

func (f FaultCode) String() string {
	description, ok := faultDescription[f]
	if ok {
		return description
	}
	return fmt.Sprintf("unknown fault (%d)", uint8(f))
}
