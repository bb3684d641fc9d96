// Package servo encodes servo mode commands and decodes status frames
// for AK series motors on a CAN bus.
package servo

import (
	"fmt"

	"github.com/goakmotor/akmotor/pkg/can"
	log "github.com/sirupsen/logrus"
)

const MaxMotorID = 0xFF

// A command frame ready to be handed to a transport.
// The identifier is always sent in extended format
type OutboundFrame struct {
	ArbitrationID uint32
	Payload       []byte
}

// Convert to a CAN frame with the extended flag set
func (f OutboundFrame) Frame() can.Frame {
	frame := can.Frame{ID: (f.ArbitrationID & can.CanEffMask) | can.CanEffFlag, DLC: uint8(len(f.Payload))}
	copy(frame.Data[:], f.Payload)
	return frame
}

// Codec maps commands to frames for a single motor.
// It holds no mutable state and can be shared between goroutines
type Codec struct {
	motorId uint8
}

func NewCodec(motorId int) (*Codec, error) {
	if motorId < 0 || motorId > MaxMotorID {
		return nil, fmt.Errorf("%w : got %v", ErrInvalidIdentifier, motorId)
	}
	return &Codec{motorId: uint8(motorId)}, nil
}

func (c *Codec) MotorID() uint8 {
	return c.motorId
}

// Encode a command. No frame is produced if a parameter is invalid
func (c *Codec) Encode(cmd Command) (OutboundFrame, error) {
	data, err := cmd.payload()
	if err != nil {
		return OutboundFrame{}, err
	}
	frame := OutboundFrame{ArbitrationID: ArbitrationID(cmd.Mode(), c.motorId), Payload: data}
	log.Debugf("[SERVO][x%x] %v : id x%x data %x", c.motorId, cmd.Mode(), frame.ArbitrationID, data)
	return frame, nil
}

func (c *Codec) SetDutyCycle(duty float64) (OutboundFrame, error) {
	return c.Encode(Duty{Duty: duty})
}

func (c *Codec) SetCurrent(amps float64) (OutboundFrame, error) {
	return c.Encode(Current{Amps: amps})
}

func (c *Codec) SetBrakeCurrent(amps float64) (OutboundFrame, error) {
	return c.Encode(BrakeCurrent{Amps: amps})
}

func (c *Codec) SetVelocity(rpm float64) (OutboundFrame, error) {
	return c.Encode(Velocity{RPM: rpm})
}

func (c *Codec) SetPosition(degrees float64) (OutboundFrame, error) {
	return c.Encode(Position{Degrees: degrees})
}

func (c *Codec) SetOrigin(permanent bool) (OutboundFrame, error) {
	return c.Encode(Origin{Permanent: permanent})
}

func (c *Codec) SetPositionVelocity(degrees float64, rpm int, acceleration int) (OutboundFrame, error) {
	return c.Encode(PositionVelocity{Degrees: degrees, RPM: rpm, Acceleration: acceleration})
}
