//go:build linux

package socketcanv2

import (
	"testing"

	can "github.com/goakmotor/akmotor/pkg/can"
	"github.com/stretchr/testify/assert"
)

func TestMarshalFrame(t *testing.T) {
	frame, _ := can.NewExtendedFrame(0x468, []byte{0x00, 0x1b, 0x77, 0x40})
	raw := marshalFrame(frame)
	assert.Len(t, raw, SocketCANFrameSize)
	assert.Equal(t, []byte{0x68, 0x04, 0x00, 0x80}, raw[0:4])
	assert.EqualValues(t, 4, raw[4])
	assert.Equal(t, []byte{0x00, 0x1b, 0x77, 0x40, 0, 0, 0, 0}, raw[8:])
	assert.Equal(t, frame, unmarshalFrame(raw))
}

func TestExtendedFilter(t *testing.T) {
	filter := ExtendedFilter(0x2968, 0xFF)
	assert.EqualValues(t, 0x2968|can.CanEffFlag, filter.Id)
	assert.EqualValues(t, 0xFF|can.CanEffFlag, filter.Mask)
}

func TestUnknownChannel(t *testing.T) {
	_, err := NewSocketCanBus("doesnotexist0")
	assert.NotNil(t, err)
}

func TestSendBeforeConnect(t *testing.T) {
	bus := &SocketcanBus{}
	assert.ErrorIs(t, bus.Send(can.NewFrame(0x1, 0, 0)), can.ErrClosed)
	assert.Nil(t, bus.Disconnect())
}
