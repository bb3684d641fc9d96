package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/goakmotor/akmotor/pkg/can"
	"github.com/goakmotor/akmotor/pkg/servo"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	config, err := Parse([]byte(""))
	assert.Nil(t, err)
	assert.Equal(t, Default(), config)
}

func TestParse(t *testing.T) {
	raw := []byte(`
[bus]
interface = virtualcan
channel = localhost:18888
bitrate = 500000

[motor]
id = 0x10
status_timeout_ms = 250

[log]
level = debug
`)
	config, err := Parse(raw)
	require.Nil(t, err)
	assert.Equal(t, "virtualcan", config.Interface)
	assert.Equal(t, "localhost:18888", config.Channel)
	assert.Equal(t, 500000, config.Bitrate)
	assert.Equal(t, 0x10, config.MotorID)
	assert.Equal(t, 250*time.Millisecond, config.StatusTimeout)
	assert.Equal(t, log.DebugLevel, config.LogLevel)
}

func TestParseDecimalID(t *testing.T) {
	config, err := Parse([]byte("[motor]\nid = 104\n"))
	assert.Nil(t, err)
	assert.Equal(t, 104, config.MotorID)
}

func TestParseInvalid(t *testing.T) {
	invalid := []string{
		"[motor]\nid = 256\n",
		"[motor]\nid = -1\n",
		"[motor]\nid = motor\n",
		"[motor]\nstatus_timeout_ms = 0\n",
		"[motor]\nstatus_timeout_ms = fast\n",
		"[bus]\nbitrate = -5\n",
		"[log]\nlevel = loud\n",
	}
	for _, raw := range invalid {
		_, err := Parse([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidConfig, raw)
	}
	_, err := Parse([]byte("[motor]\nid = 300\n"))
	assert.ErrorIs(t, err, servo.ErrInvalidIdentifier)
}

func TestExportAndLoad(t *testing.T) {
	config := Default()
	config.Interface = "socketcanv2"
	config.Channel = "vcan0"
	config.MotorID = 3
	config.StatusTimeout = 40 * time.Millisecond
	config.LogLevel = log.WarnLevel
	filename := filepath.Join(t.TempDir(), "akmotor.ini")
	require.Nil(t, config.Export(filename))

	loaded, err := Load(filename)
	assert.Nil(t, err)
	assert.Equal(t, config, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.NotNil(t, err)
}

type fakeBus struct {
	connected bool
	sent      []can.Frame
	listener  can.FrameListener
}

func (b *fakeBus) Connect(...any) error {
	b.connected = true
	return nil
}

func (b *fakeBus) Disconnect() error {
	b.connected = false
	return nil
}

func (b *fakeBus) Send(frame can.Frame) error {
	b.sent = append(b.sent, frame)
	return nil
}

func (b *fakeBus) Subscribe(listener can.FrameListener) error {
	b.listener = listener
	return nil
}

func TestOpenMotor(t *testing.T) {
	bus := &fakeBus{}
	can.RegisterInterface("configtest", func(channel string) (can.Bus, error) {
		return bus, nil
	})
	config := Default()
	config.Interface = "configtest"
	motor, transport, err := config.OpenMotor()
	require.Nil(t, err)
	assert.True(t, bus.connected)
	assert.EqualValues(t, DefaultMotorID, motor.ID())

	require.Nil(t, motor.SetOrigin(false))
	require.Len(t, bus.sent, 1)
	assert.EqualValues(t, 0x568, bus.sent[0].Identifier())

	// Status of another motor is filtered out
	other, _ := can.NewExtendedFrame(0x2901, []byte{0, 0, 0, 0, 0, 0, 0, 0})
	own, _ := can.NewExtendedFrame(0x2968, []byte{0x07, 0x08, 0, 0, 0, 0, 20, 0})
	bus.listener.Handle(other)
	bus.listener.Handle(own)
	status, err := motor.ReadStatus(10 * time.Millisecond)
	assert.Nil(t, err)
	require.NotNil(t, status)
	assert.InDelta(t, 180.0, status.Position, 1e-9)

	assert.Nil(t, transport.Close())
	assert.False(t, bus.connected)
}

func TestOpenMotorUnknownInterface(t *testing.T) {
	config := Default()
	config.Interface = "doesnotexist"
	_, _, err := config.OpenMotor()
	assert.NotNil(t, err)
}
