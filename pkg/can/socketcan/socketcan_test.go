package socketcan

import (
	"testing"

	sockcan "github.com/brutella/can"
	can "github.com/goakmotor/akmotor/pkg/can"
	"github.com/stretchr/testify/assert"
)

type frameListener struct {
	frames []can.Frame
}

func (f *frameListener) Handle(frame can.Frame) {
	f.frames = append(f.frames, frame)
}

func TestFrameConversion(t *testing.T) {
	frame, _ := can.NewExtendedFrame(0x668, []byte{0x00, 0x1b, 0x77, 0x40, 0x01, 0xf4, 0x0b, 0xb8})
	converted := toSockcan(frame)
	assert.EqualValues(t, 0x668|can.CanEffFlag, converted.ID)
	assert.EqualValues(t, 8, converted.Length)
	assert.Equal(t, frame.Data, converted.Data)
	assert.Equal(t, frame, fromSockcan(converted))
}

func TestHandleForwardsToListener(t *testing.T) {
	bus := &SocketcanBus{}
	// No listener yet, should not panic
	bus.Handle(sockcan.Frame{ID: 0x10})

	listener := &frameListener{}
	bus.rxCallback = listener
	bus.Handle(sockcan.Frame{ID: 0x2968 | can.CanEffFlag, Length: 8, Data: [8]uint8{7, 8, 3, 232, 1, 244, 25, 0}})
	assert.Len(t, listener.frames, 1)
	assert.True(t, listener.frames[0].IsExtended())
	assert.EqualValues(t, 0x2968, listener.frames[0].Identifier())
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, can.AvailableInterfaces(), "socketcan")
}
