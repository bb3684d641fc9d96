// Package config loads the bus and motor settings used by the command line
// tool and the examples from an INI file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goakmotor/akmotor/pkg/servo"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

const (
	DefaultInterface     = "socketcan"
	DefaultChannel       = "can0"
	DefaultBitrate       = 1_000_000
	DefaultMotorID       = 0x68
	DefaultStatusTimeout = servo.DefaultStatusTimeout
	DefaultLogLevel      = log.InfoLevel
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Interface     string
	Channel       string
	Bitrate       int
	MotorID       int
	StatusTimeout time.Duration
	LogLevel      log.Level
}

func Default() *Config {
	return &Config{
		Interface:     DefaultInterface,
		Channel:       DefaultChannel,
		Bitrate:       DefaultBitrate,
		MotorID:       DefaultMotorID,
		StatusTimeout: DefaultStatusTimeout,
		LogLevel:      DefaultLogLevel,
	}
}

// Load a configuration file
// file can be either a path or []byte, missing keys keep their default value
func Load(file any) (*Config, error) {
	iniFile, err := ini.Load(file)
	if err != nil {
		return nil, err
	}
	config := Default()

	bus := iniFile.Section("bus")
	config.Interface = bus.Key("interface").MustString(config.Interface)
	config.Channel = bus.Key("channel").MustString(config.Channel)
	config.Bitrate = bus.Key("bitrate").MustInt(config.Bitrate)

	motor := iniFile.Section("motor")
	if motor.HasKey("id") {
		// Accept hex (0x68) as well as decimal ids
		id, err := strconv.ParseInt(motor.Key("id").String(), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%w : motor id %q : %v", ErrInvalidConfig, motor.Key("id").String(), err)
		}
		config.MotorID = int(id)
	}
	if motor.HasKey("status_timeout_ms") {
		timeoutMs, err := motor.Key("status_timeout_ms").Int()
		if err != nil {
			return nil, fmt.Errorf("%w : status_timeout_ms : %v", ErrInvalidConfig, err)
		}
		config.StatusTimeout = time.Duration(timeoutMs) * time.Millisecond
	}

	logSection := iniFile.Section("log")
	if logSection.HasKey("level") {
		level, err := log.ParseLevel(logSection.Key("level").String())
		if err != nil {
			return nil, fmt.Errorf("%w : %v", ErrInvalidConfig, err)
		}
		config.LogLevel = level
	}
	return config, config.Validate()
}

// Parse configuration from raw INI content
func Parse(data []byte) (*Config, error) {
	return Load(data)
}

func (c *Config) Validate() error {
	if c.MotorID < 0 || c.MotorID > servo.MaxMotorID {
		return fmt.Errorf("%w : %w : got %v", ErrInvalidConfig, servo.ErrInvalidIdentifier, c.MotorID)
	}
	if strings.TrimSpace(c.Interface) == "" {
		return fmt.Errorf("%w : empty bus interface", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Channel) == "" {
		return fmt.Errorf("%w : empty bus channel", ErrInvalidConfig)
	}
	if c.Bitrate <= 0 {
		return fmt.Errorf("%w : bitrate must be positive, got %v", ErrInvalidConfig, c.Bitrate)
	}
	if c.StatusTimeout <= 0 {
		return fmt.Errorf("%w : status timeout must be positive, got %v", ErrInvalidConfig, c.StatusTimeout)
	}
	return nil
}

// Save configuration to an INI file
func (c *Config) Export(filename string) error {
	iniFile := ini.Empty()
	bus, err := iniFile.NewSection("bus")
	if err != nil {
		return err
	}
	bus.Key("interface").SetValue(c.Interface)
	bus.Key("channel").SetValue(c.Channel)
	bus.Key("bitrate").SetValue(strconv.Itoa(c.Bitrate))

	motor, err := iniFile.NewSection("motor")
	if err != nil {
		return err
	}
	motor.Key("id").SetValue(fmt.Sprintf("0x%x", c.MotorID))
	motor.Key("status_timeout_ms").SetValue(strconv.FormatInt(c.StatusTimeout.Milliseconds(), 10))

	logSection, err := iniFile.NewSection("log")
	if err != nil {
		return err
	}
	logSection.Key("level").SetValue(c.LogLevel.String())
	log.Debugf("[CONFIG] exporting configuration to %v", filename)
	return iniFile.SaveTo(filename)
}
