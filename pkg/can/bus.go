package can

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

const CanRtrFlag uint32 = 0x40000000
const CanEffFlag uint32 = 0x80000000
const CanSffMask uint32 = 0x000007FF
const CanEffMask uint32 = 0x1FFFFFFF

// Maximum payload of a classical CAN frame
const MaxDataLength = 8

var (
	ErrFrameTooLong = errors.New("frame payload exceeds 8 bytes")
	ErrClosed       = errors.New("bus is closed")
)

// A CAN frame
// The identifier carries the socketcan flags (EFF, RTR) in its upper bits
type Frame struct {
	ID    uint32
	Flags uint8
	DLC   uint8
	Data  [8]byte
}

func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	return Frame{ID: id, Flags: flags, DLC: dlc}
}

// Create a frame with an extended (29 bit) identifier and the given payload
func NewExtendedFrame(id uint32, data []byte) (Frame, error) {
	if len(data) > MaxDataLength {
		return Frame{}, fmt.Errorf("%w : got %v bytes", ErrFrameTooLong, len(data))
	}
	frame := Frame{ID: (id & CanEffMask) | CanEffFlag, DLC: uint8(len(data))}
	copy(frame.Data[:], data)
	return frame, nil
}

// Whether the identifier is in extended format
func (f Frame) IsExtended() bool {
	return f.ID&CanEffFlag != 0
}

// Identifier without the socketcan flags
func (f Frame) Identifier() uint32 {
	if f.IsExtended() {
		return f.ID & CanEffMask
	}
	return f.ID & CanSffMask
}

// Payload returns the valid data bytes of the frame
func (f Frame) Payload() []byte {
	dlc := f.DLC
	if dlc > MaxDataLength {
		dlc = MaxDataLength
	}
	return f.Data[:dlc]
}

// Interface for handling a received CAN frame
type FrameListener interface {
	Handle(frame Frame)
}

// A CAN Bus interface
type Bus interface {
	Connect(...any) error                   // Connect to the CAN bus
	Disconnect() error                      // Disconnect from CAN bus
	Send(frame Frame) error                 // Send a frame on the bus
	Subscribe(callback FrameListener) error // Subscribe to all received CAN frames
}

type NewInterfaceFunc func(channel string) (Bus, error)

var (
	registryMu        sync.RWMutex
	interfaceRegistry = make(map[string]NewInterfaceFunc)
)

// Register a new CAN bus interface type
// This should be called inside an init() function of plugin
func RegisterInterface(interfaceType string, newInterface NewInterfaceFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	interfaceRegistry[interfaceType] = newInterface
}

// Names of all registered interfaces, sorted
func AvailableInterfaces() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(interfaceRegistry))
	for name := range interfaceRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create a new CAN bus with given interface
// The backend package must be imported for its interface to be registered
// e.g. socketcan, socketcanv2, virtual
func NewBus(canInterface string, channel string, bitrate int) (Bus, error) {
	registryMu.RLock()
	createInterface, ok := interfaceRegistry[canInterface]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported interface : %v", canInterface)
	}
	if bitrate <= 0 {
		return nil, fmt.Errorf("invalid bitrate : %v", bitrate)
	}
	return createInterface(channel)
}
