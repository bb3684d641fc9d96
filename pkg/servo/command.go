package servo

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Limits and scale factors of the servo mode protocol
const (
	MaxDuty         = 1.0
	MinDuty         = -1.0
	MaxPosition     = 36000.0
	MinPosition     = -36000.0
	DutyScale       = 100000.0
	CurrentScale    = 1000.0
	PositionScale   = 10000.0
	SpeedDivisor    = 10
	AccelDivisor    = 10
	OriginTemporary = 0x00
	OriginPermanent = 0x01
)

// Command is one of [Duty], [Current], [BrakeCurrent], [Velocity],
// [Position], [Origin] or [PositionVelocity]
type Command interface {
	Mode() ServoMode
	payload() ([]byte, error)
}

// Duty cycle between -1 and 1
type Duty struct {
	Duty float64
}

// Current loop, in amperes
type Current struct {
	Amps float64
}

// Brake current, in amperes. Must be positive
type BrakeCurrent struct {
	Amps float64
}

// Velocity loop, in ERPM
type Velocity struct {
	RPM float64
}

// Position loop, in degrees
type Position struct {
	Degrees float64
}

// Set current position as origin, either temporarily or permanently
type Origin struct {
	Permanent bool
}

// Position loop with speed (ERPM) and acceleration limits
type PositionVelocity struct {
	Degrees      float64
	RPM          int
	Acceleration int
}

func (Duty) Mode() ServoMode             { return DutyCycle }
func (Current) Mode() ServoMode          { return CurrentLoop }
func (BrakeCurrent) Mode() ServoMode     { return CurrentBrake }
func (Velocity) Mode() ServoMode         { return VelocityLoop }
func (Position) Mode() ServoMode         { return PositionLoop }
func (Origin) Mode() ServoMode           { return SetOrigin }
func (PositionVelocity) Mode() ServoMode { return PositionVelocityLoop }

func (c Duty) payload() ([]byte, error) {
	if err := checkBounds("duty", c.Duty, MinDuty, MaxDuty); err != nil {
		return nil, err
	}
	return putInt32("duty", c.Duty, DutyScale)
}

func (c Current) payload() ([]byte, error) {
	return putInt32("current", c.Amps, CurrentScale)
}

func (c BrakeCurrent) payload() ([]byte, error) {
	if !(c.Amps >= 0) {
		return nil, fmt.Errorf("%w : brake current must be non-negative, got %v", ErrOutOfRange, c.Amps)
	}
	return putInt32("brake current", c.Amps, CurrentScale)
}

func (c Velocity) payload() ([]byte, error) {
	return putInt32("velocity", c.RPM, 1)
}

func (c Position) payload() ([]byte, error) {
	if err := checkBounds("position", c.Degrees, MinPosition, MaxPosition); err != nil {
		return nil, err
	}
	return putInt32("position", c.Degrees, PositionScale)
}

func (c Origin) payload() ([]byte, error) {
	if c.Permanent {
		return []byte{OriginPermanent}, nil
	}
	return []byte{OriginTemporary}, nil
}

func (c PositionVelocity) payload() ([]byte, error) {
	if err := checkBounds("position", c.Degrees, MinPosition, MaxPosition); err != nil {
		return nil, err
	}
	position, err := toInt32("position", c.Degrees, PositionScale)
	if err != nil {
		return nil, err
	}
	speed, err := toInt16("speed", c.RPM/SpeedDivisor)
	if err != nil {
		return nil, err
	}
	accel, err := toInt16("acceleration", c.Acceleration/AccelDivisor)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 8)
	binary.BigEndian.PutUint32(data[0:4], uint32(position))
	binary.BigEndian.PutUint16(data[4:6], uint16(speed))
	binary.BigEndian.PutUint16(data[6:8], uint16(accel))
	return data, nil
}

// NaN never satisfies the bounds
func checkBounds(name string, value float64, lo float64, hi float64) error {
	if !(value >= lo && value <= hi) {
		return fmt.Errorf("%w : %v must be between %v and %v, got %v", ErrOutOfRange, name, lo, hi, value)
	}
	return nil
}

// Scale then truncate toward zero
func toInt32(name string, value float64, scale float64) (int32, error) {
	scaled := math.Trunc(value * scale)
	if math.IsNaN(scaled) || scaled < math.MinInt32 || scaled > math.MaxInt32 {
		return 0, fmt.Errorf("%w : %v %v does not fit in 32 bits", ErrOutOfRange, name, value)
	}
	return int32(scaled), nil
}

func toInt16(name string, value int) (int16, error) {
	if value < math.MinInt16 || value > math.MaxInt16 {
		return 0, fmt.Errorf("%w : %v %v does not fit in 16 bits", ErrOutOfRange, name, value)
	}
	return int16(value), nil
}

func putInt32(name string, value float64, scale float64) ([]byte, error) {
	scaled, err := toInt32(name, value, scale)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, uint32(scaled))
	return data, nil
}
