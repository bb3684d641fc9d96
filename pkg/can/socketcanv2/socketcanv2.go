//go:build linux

package socketcanv2

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	can "github.com/goakmotor/akmotor/pkg/can"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	SocketCANFrameSize = 16
	DefaultRcvTimeout  = 100 * time.Millisecond
)

func init() {
	can.RegisterInterface("socketcanv2", NewSocketCanBus)
}

// Raw socketcan implementation, without any third party CAN library
type SocketcanBus struct {
	f          *os.File
	fd         int
	channel    string
	mu         sync.Mutex
	rxCallback can.FrameListener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// Create a new SocketCAN bus. This expects the CAN channel to be up.
// e.g. running "ip a" should show can0 or something similar.
func NewSocketCanBus(channel string) (can.Bus, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to create CAN socket : %v", err)
	}
	tv := unix.NsecToTimeval(DefaultRcvTimeout.Nanoseconds())
	err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set read timeout %v", err)
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &SocketcanBus{fd: fd, channel: channel}, nil
}

// "Connect" implementation of Bus interface
func (s *SocketcanBus) Connect(...any) error {
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.f = os.NewFile(uintptr(s.fd), fmt.Sprintf("fd %d", s.fd))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processIncoming(ctx)
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
func (s *SocketcanBus) Disconnect() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	return s.f.Close()
}

// "Send" implementation of Bus interface
func (s *SocketcanBus) Send(frame can.Frame) error {
	if s.f == nil {
		return can.ErrClosed
	}
	n, err := s.f.Write(marshalFrame(frame))
	if err != nil {
		return err
	}
	if n != SocketCANFrameSize {
		return fmt.Errorf("short write on %v : %v bytes", s.channel, n)
	}
	return nil
}

// "Subscribe" implementation of Bus interface
func (s *SocketcanBus) Subscribe(rxCallback can.FrameListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxCallback = rxCallback
	return nil
}

// process incoming frames. This is meant to be run inside of a goroutine
func (s *SocketcanBus) processIncoming(ctx context.Context) {
	rxFrame := make([]byte, SocketCANFrameSize)
	for {
		select {
		case <-ctx.Done():
			log.Infof("[CAN] exiting %v reception, closed", s.channel)
			return
		default:
			n, err := s.f.Read(rxFrame)
			if os.IsTimeout(err) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			if n != SocketCANFrameSize || err != nil {
				log.Infof("[CAN] exiting %v reception : %v", s.channel, err)
				return
			}
			frame := unmarshalFrame(rxFrame)
			s.mu.Lock()
			callback := s.rxCallback
			s.mu.Unlock()
			if callback != nil {
				callback.Handle(frame)
			}
		}
	}
}

// Enable own reception on the bus. CAN be useful when testing for example
func (s *SocketcanBus) SetReceiveOwn(enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}
	log.Infof("[CAN] setting option 'CAN_RAW_RECV_OWN_MSGS' fd %v enabled %v", s.fd, enabled)
	return unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, enabledInt)
}

// Add some filtering to CAN bus
func (s *SocketcanBus) SetFilters(filters []unix.CanFilter) error {
	log.Infof("[CAN] setting option 'CAN_RAW_FILTER' fd %v filters %v", s.fd, filters)
	return unix.SetsockoptCanRawFilter(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters)
}

// Build a kernel filter that only lets through extended frames
// whose identifier matches id under mask
func ExtendedFilter(id uint32, mask uint32) unix.CanFilter {
	return unix.CanFilter{
		Id:   (id & can.CanEffMask) | can.CanEffFlag,
		Mask: (mask & can.CanEffMask) | can.CanEffFlag,
	}
}

// Layout of struct can_frame, host (little) endian on all supported targets
func marshalFrame(frame can.Frame) []byte {
	raw := make([]byte, SocketCANFrameSize)
	binary.LittleEndian.PutUint32(raw[0:4], frame.ID)
	raw[4] = frame.DLC
	raw[5] = frame.Flags
	copy(raw[8:], frame.Data[:])
	return raw
}

func unmarshalFrame(raw []byte) can.Frame {
	frame := can.Frame{
		ID:    binary.LittleEndian.Uint32(raw[0:4]),
		DLC:   raw[4],
		Flags: raw[5],
	}
	copy(frame.Data[:], raw[8:16])
	return frame
}
