package virtual

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	can "github.com/goakmotor/akmotor/pkg/can"
	log "github.com/sirupsen/logrus"
)

// Virtual CAN bus implementation with TCP primarily used for testing
// This needs a broker server to send CAN frames to all connected clients
// More information : https://github.com/windelbouwman/virtualcan

const (
	headerSize   = 4
	readTimeout  = 200 * time.Millisecond
	writeTimeout = 10 * time.Millisecond
)

func init() {
	can.RegisterInterface("virtual", NewVirtualCanBus)
	can.RegisterInterface("virtualcan", NewVirtualCanBus)
}

type Bus struct {
	mu            sync.Mutex
	channel       string
	conn          net.Conn
	receiveOwn    bool
	framehandler  can.FrameListener
	stopChan      chan struct{}
	wg            sync.WaitGroup
	isRunning     bool
}

func NewVirtualCanBus(channel string) (can.Bus, error) {
	return &Bus{channel: channel}, nil
}

// Helper function for serializing a CAN frame into the expected binary format
// i.e. a big endian length header followed by the big endian frame
func serializeFrame(frame can.Frame) ([]byte, error) {
	buffer := new(bytes.Buffer)
	err := binary.Write(buffer, binary.BigEndian, frame)
	if err != nil {
		return nil, err
	}
	dataBytes := buffer.Bytes()
	frameBytes := make([]byte, headerSize)
	binary.BigEndian.PutUint32(frameBytes, uint32(len(dataBytes)))
	frameBytes = append(frameBytes, dataBytes...)
	return frameBytes, nil
}

// Helper function for deserializing a CAN frame from expected binary format
func deserializeFrame(buffer []byte) (*can.Frame, error) {
	var frame can.Frame
	buf := bytes.NewBuffer(buffer)
	err := binary.Read(buf, binary.BigEndian, &frame)
	if err != nil {
		return nil, err
	}
	return &frame, nil
}

// "Connect" to server e.g. localhost:18000
func (b *Bus) Connect(...any) error {
	conn, err := net.Dial("tcp", b.channel)
	if err != nil {
		return err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		err := tcpConn.SetNoDelay(true)
		if err != nil {
			conn.Close()
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn = conn
	if b.framehandler != nil {
		b.startReception()
	}
	return nil
}

// "Disconnect" from server
func (b *Bus) Disconnect() error {
	b.mu.Lock()
	stopChan := b.stopChan
	b.stopChan = nil
	b.mu.Unlock()
	if stopChan != nil {
		close(stopChan)
		b.wg.Wait()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		err := b.conn.Close()
		b.conn = nil
		return err
	}
	return nil
}

// "Send" implementation of Bus interface
func (b *Bus) Send(frame can.Frame) error {
	b.mu.Lock()
	conn := b.conn
	handler := b.framehandler
	receiveOwn := b.receiveOwn
	b.mu.Unlock()
	// Local loopback
	if receiveOwn && handler != nil {
		handler.Handle(frame)
	} else if conn == nil {
		return errors.New("error : no active connection, abort send")
	}
	if conn == nil {
		return nil
	}
	frameBytes, err := serializeFrame(frame)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = conn.Write(frameBytes)
	return err
}

// "Subscribe" implementation of Bus interface
func (b *Bus) Subscribe(framehandler can.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.framehandler = framehandler
	if b.conn != nil {
		b.startReception()
	}
	return nil
}

// Start go routine that receives incoming traffic and passes it to frameHandler
// Should be called with lock held
func (b *Bus) startReception() {
	if b.isRunning {
		return
	}
	b.stopChan = make(chan struct{})
	b.isRunning = true
	b.wg.Add(1)
	go b.handleReception(b.stopChan)
}

// Receive new CAN message
// Returns a net.Error with Timeout() when nothing arrived in time
func (b *Bus) Recv() (*can.Frame, error) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("error : no active connection, abort receive")
	}
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	headerBytes := make([]byte, headerSize)
	n, err := io.ReadFull(conn, headerBytes)
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() && n == 0 {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("error deserializing : expected %v, got %v, err : %v", headerSize, n, err)
	}
	length := binary.BigEndian.Uint32(headerBytes)
	frameBytes := make([]byte, length)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	n, err = io.ReadFull(conn, frameBytes)
	if err != nil {
		return nil, fmt.Errorf("error deserializing : expected %v, got %v, err : %v", length, n, err)
	}
	return deserializeFrame(frameBytes)
}

// Handle incoming traffic
func (b *Bus) handleReception(stopChan chan struct{}) {
	defer func() {
		b.mu.Lock()
		b.isRunning = false
		b.mu.Unlock()
		b.wg.Done()
	}()
	for {
		select {
		case <-stopChan:
			return
		default:
			frame, err := b.Recv()
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				// No message received, this is OK
				continue
			} else if err != nil {
				select {
				case <-stopChan:
				default:
					log.Errorf("[CAN] listening routine has closed because : %v", err)
				}
				return
			}
			b.mu.Lock()
			handler := b.framehandler
			b.mu.Unlock()
			if handler != nil {
				handler.Handle(*frame)
			}
		}
	}
}

func (b *Bus) SetReceiveOwn(receiveOwn bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiveOwn = receiveOwn
}
