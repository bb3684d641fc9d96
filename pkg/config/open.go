package config

import (
	"github.com/goakmotor/akmotor/pkg/can"
	"github.com/goakmotor/akmotor/pkg/servo"
	log "github.com/sirupsen/logrus"
)

// Connect to the configured bus and bind a motor to it.
// Only frames whose low identifier byte is the motor id are received.
// The backend package for c.Interface must be imported by the caller.
// Closing the returned transport disconnects the bus
func (c *Config) OpenMotor() (*servo.Motor, *can.BusTransport, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	bus, err := can.NewBus(c.Interface, c.Channel, c.Bitrate)
	if err != nil {
		return nil, nil, err
	}
	err = bus.Connect()
	if err != nil {
		return nil, nil, err
	}
	transport, err := can.NewBusTransport(bus, 0)
	if err != nil {
		bus.Disconnect()
		return nil, nil, err
	}
	transport.SetFilter(uint32(c.MotorID), 0xFF)
	motor, err := servo.NewMotor(c.MotorID, transport)
	if err != nil {
		transport.Close()
		return nil, nil, err
	}
	log.Infof("[CONFIG] motor x%x on %v (%v)", c.MotorID, c.Channel, c.Interface)
	return motor, transport, nil
}
