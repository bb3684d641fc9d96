package servo

import (
	"context"
	"time"

	"github.com/goakmotor/akmotor/pkg/can"
	log "github.com/sirupsen/logrus"
)

const DefaultStatusTimeout = 100 * time.Millisecond

// Transport is what a [Motor] needs from the CAN bus.
// Receive returns nil without error when nothing arrived before timeout.
// [can.BusTransport] implements it on top of any [can.Bus]
type Transport interface {
	Send(frame can.Frame) error
	Receive(timeout time.Duration) (*can.Frame, error)
}

// Motor sends encoded commands to one motor through a transport
type Motor struct {
	codec     *Codec
	transport Transport
}

func NewMotor(motorId int, transport Transport) (*Motor, error) {
	codec, err := NewCodec(motorId)
	if err != nil {
		return nil, err
	}
	return &Motor{codec: codec, transport: transport}, nil
}

func (m *Motor) Codec() *Codec {
	return m.codec
}

func (m *Motor) ID() uint8 {
	return m.codec.MotorID()
}

// Encode and send a command
// Nothing is sent if the command is invalid, transport errors are returned as is
func (m *Motor) Send(cmd Command) error {
	frame, err := m.codec.Encode(cmd)
	if err != nil {
		return err
	}
	return m.transport.Send(frame.Frame())
}

func (m *Motor) SetDutyCycle(duty float64) error {
	return m.Send(Duty{Duty: duty})
}

func (m *Motor) SetCurrent(amps float64) error {
	return m.Send(Current{Amps: amps})
}

func (m *Motor) SetBrakeCurrent(amps float64) error {
	return m.Send(BrakeCurrent{Amps: amps})
}

func (m *Motor) SetVelocity(rpm float64) error {
	return m.Send(Velocity{RPM: rpm})
}

func (m *Motor) SetPosition(degrees float64) error {
	return m.Send(Position{Degrees: degrees})
}

func (m *Motor) SetOrigin(permanent bool) error {
	return m.Send(Origin{Permanent: permanent})
}

func (m *Motor) SetPositionVelocity(degrees float64, rpm int, acceleration int) error {
	return m.Send(PositionVelocity{Degrees: degrees, RPM: rpm, Acceleration: acceleration})
}

// Wait for the next status frame.
// A zero or negative timeout selects [DefaultStatusTimeout].
// Returns nil without error on timeout or if the frame is too short
func (m *Motor) ReadStatus(timeout time.Duration) (*Status, error) {
	if timeout <= 0 {
		timeout = DefaultStatusTimeout
	}
	frame, err := m.transport.Receive(timeout)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, nil
	}
	status, ok := DecodeStatus(frame.Payload())
	if !ok {
		log.Debugf("[SERVO][x%x] ignoring short frame x%x (%v bytes)", m.ID(), frame.Identifier(), frame.DLC)
		return nil, nil
	}
	return &status, nil
}

// Wait for a status frame until ctx is done
func (m *Motor) ReadStatusContext(ctx context.Context) (*Status, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		timeout := DefaultStatusTimeout
		if deadline, ok := ctx.Deadline(); ok {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, context.DeadlineExceeded
			}
			if remaining < timeout {
				timeout = remaining
			}
		}
		status, err := m.ReadStatus(timeout)
		if err != nil || status != nil {
			return status, err
		}
	}
}
