package virtual

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	can "github.com/goakmotor/akmotor/pkg/can"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameReceiver struct {
	mu     sync.Mutex
	frames []can.Frame
}

func (r *frameReceiver) Handle(frame can.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *frameReceiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Minimal broker : reads one frame from the client and answers with reply
func startBroker(t *testing.T, reply can.Frame) (string, chan can.Frame) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	t.Cleanup(func() { listener.Close() })
	received := make(chan can.Frame, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		header := make([]byte, 4)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		body := make([]byte, binary.BigEndian.Uint32(header))
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}
		frame, err := deserializeFrame(body)
		if err != nil {
			return
		}
		received <- *frame
		raw, _ := serializeFrame(reply)
		conn.Write(raw)
		// Keep connection open until client disconnects
		io.Copy(io.Discard, conn)
	}()
	return listener.Addr().String(), received
}

func TestSerializeFrame(t *testing.T) {
	frame, _ := can.NewExtendedFrame(0x468, []byte{0x00, 0x1b, 0x77, 0x40})
	raw, err := serializeFrame(frame)
	assert.Nil(t, err)
	// ID(4) + Flags(1) + DLC(1) + Data(8)
	assert.Len(t, raw, 4+14)
	assert.EqualValues(t, 14, binary.BigEndian.Uint32(raw[0:4]))
	assert.Equal(t, []byte{0x80, 0x00, 0x04, 0x68}, raw[4:8])
	decoded, err := deserializeFrame(raw[4:])
	assert.Nil(t, err)
	assert.Equal(t, frame, *decoded)

	_, err = deserializeFrame(raw[4:10])
	assert.NotNil(t, err)
}

func TestSendAndSubscribe(t *testing.T) {
	status, _ := can.NewExtendedFrame(0x2968, []byte{0x07, 0x08, 0x03, 0xe8, 0x01, 0xf4, 0x19, 0x00})
	address, received := startBroker(t, status)

	bus, _ := NewVirtualCanBus(address)
	require.Nil(t, bus.Connect())
	defer bus.Disconnect()
	receiver := &frameReceiver{}
	require.Nil(t, bus.Subscribe(receiver))

	command, _ := can.NewExtendedFrame(0x468, []byte{0x00, 0x1b, 0x77, 0x40})
	require.Nil(t, bus.Send(command))

	select {
	case frame := <-received:
		assert.Equal(t, command, frame)
	case <-time.After(time.Second):
		t.Fatal("broker did not receive frame")
	}
	assert.Eventually(t, func() bool { return receiver.count() == 1 }, time.Second, 5*time.Millisecond)
	receiver.mu.Lock()
	assert.Equal(t, status, receiver.frames[0])
	receiver.mu.Unlock()
}

func TestReceiveOwn(t *testing.T) {
	bus, _ := NewVirtualCanBus("localhost:0")
	vcan := bus.(*Bus)
	defer vcan.Disconnect()
	receiver := &frameReceiver{}
	vcan.Subscribe(receiver)
	frame := can.Frame{ID: 0x111, Flags: 0, DLC: 8, Data: [8]byte{0, 1, 2, 3, 4, 5, 6, 7}}
	// Not connected and no loopback
	assert.NotNil(t, vcan.Send(frame))
	assert.Equal(t, 0, receiver.count())

	// Activate receive own
	vcan.SetReceiveOwn(true)
	assert.Nil(t, vcan.Send(frame))
	assert.Equal(t, 1, receiver.count())
}

func TestConnectRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	address := listener.Addr().String()
	listener.Close()
	bus, _ := NewVirtualCanBus(address)
	assert.NotNil(t, bus.Connect())
	assert.Nil(t, bus.Disconnect())
}

func TestRegistered(t *testing.T) {
	bus, err := can.NewBus("virtualcan", "localhost:18888", 1_000_000)
	assert.Nil(t, err)
	assert.IsType(t, &Bus{}, bus)
}
