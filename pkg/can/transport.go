package can

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultRxBufferSize = 64

// BusTransport is a wrapper around the CAN bus interface
// It turns the callback based reception of a [Bus] into a blocking
// receive with timeout, which is what request / response style
// drivers expect.
type BusTransport struct {
	mu       sync.Mutex
	bus      Bus
	rx       chan Frame
	filterId uint32
	mask     uint32
	dropped  uint64
	closed   bool
}

// Create a new BusTransport and subscribe to frames received on bus.
// The bus should already be connected.
// bufferSize <= 0 selects [DefaultRxBufferSize]
func NewBusTransport(bus Bus, bufferSize int) (*BusTransport, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultRxBufferSize
	}
	bt := &BusTransport{
		bus: bus,
		rx:  make(chan Frame, bufferSize),
	}
	err := bus.Subscribe(bt)
	if err != nil {
		return nil, err
	}
	return bt, nil
}

// Only queue frames whose identifier (without flags) matches id under mask.
// A zero mask accepts everything, which is the default
func (bt *BusTransport) SetFilter(id uint32, mask uint32) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.filterId = id & mask
	bt.mask = mask
}

// Implements the FrameListener interface
// When the buffer is full, the oldest frame is dropped
func (bt *BusTransport) Handle(frame Frame) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	if bt.closed {
		return
	}
	if frame.Identifier()&bt.mask != bt.filterId {
		return
	}
	for {
		select {
		case bt.rx <- frame:
			return
		default:
		}
		select {
		case old := <-bt.rx:
			bt.dropped++
			log.Warnf("[CAN] rx buffer full, dropped frame x%x", old.Identifier())
		default:
		}
	}
}

// Send a CAN frame
// Errors are logged and returned unmodified
func (bt *BusTransport) Send(frame Frame) error {
	bt.mu.Lock()
	closed := bt.closed
	bt.mu.Unlock()
	if closed {
		return ErrClosed
	}
	err := bt.bus.Send(frame)
	if err != nil {
		log.Warnf("[CAN] %v", err)
	}
	return err
}

// Wait for the next received frame.
// Returns nil without error if nothing was received within timeout
func (bt *BusTransport) Receive(timeout time.Duration) (*Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame, ok := <-bt.rx:
		if !ok {
			return nil, ErrClosed
		}
		return &frame, nil
	case <-timer.C:
		return nil, nil
	}
}

// Number of frames dropped because of a full rx buffer
func (bt *BusTransport) Dropped() uint64 {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.dropped
}

// Stop queueing frames and disconnect from the underlying bus
func (bt *BusTransport) Close() error {
	bt.mu.Lock()
	if bt.closed {
		bt.mu.Unlock()
		return nil
	}
	bt.closed = true
	close(bt.rx)
	bt.mu.Unlock()
	return bt.bus.Disconnect()
}
