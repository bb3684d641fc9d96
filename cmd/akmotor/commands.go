package main

import (
	"fmt"
	"strconv"

	"github.com/goakmotor/akmotor/pkg/servo"
)

const usage = `usage : akmotor [flags] <command> [args]

commands :
  duty <duty>                    duty cycle between -1 and 1
  current <amps>                 current loop
  brake <amps>                   brake current (positive)
  velocity <erpm>                velocity loop
  position <degrees>             position loop, between -36000 and 36000
  origin [permanent]             set current position as origin
  posvel <degrees> <erpm> <acc>  position loop with speed and acceleration
  status                         print received status frames
`

// Build the servo command matching a command line
func parseCommand(name string, args []string) (servo.Command, error) {
	switch name {
	case "duty":
		value, err := floatArgs(name, args, 1)
		if err != nil {
			return nil, err
		}
		return servo.Duty{Duty: value[0]}, nil
	case "current":
		value, err := floatArgs(name, args, 1)
		if err != nil {
			return nil, err
		}
		return servo.Current{Amps: value[0]}, nil
	case "brake":
		value, err := floatArgs(name, args, 1)
		if err != nil {
			return nil, err
		}
		return servo.BrakeCurrent{Amps: value[0]}, nil
	case "velocity":
		value, err := floatArgs(name, args, 1)
		if err != nil {
			return nil, err
		}
		return servo.Velocity{RPM: value[0]}, nil
	case "position":
		value, err := floatArgs(name, args, 1)
		if err != nil {
			return nil, err
		}
		return servo.Position{Degrees: value[0]}, nil
	case "origin":
		if len(args) > 1 || (len(args) == 1 && args[0] != "permanent") {
			return nil, fmt.Errorf("origin : expecting optional argument 'permanent', got %v", args)
		}
		return servo.Origin{Permanent: len(args) == 1}, nil
	case "posvel":
		if len(args) != 3 {
			return nil, fmt.Errorf("posvel : expecting 3 arguments, got %v", len(args))
		}
		degrees, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, fmt.Errorf("posvel : invalid position %q", args[0])
		}
		rpm, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("posvel : invalid speed %q", args[1])
		}
		acceleration, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("posvel : invalid acceleration %q", args[2])
		}
		return servo.PositionVelocity{Degrees: degrees, RPM: rpm, Acceleration: acceleration}, nil
	}
	return nil, fmt.Errorf("unknown command : %v", name)
}

func floatArgs(name string, args []string, count int) ([]float64, error) {
	if len(args) != count {
		return nil, fmt.Errorf("%v : expecting %v argument(s), got %v", name, count, len(args))
	}
	values := make([]float64, count)
	for i, arg := range args {
		value, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("%v : invalid value %q", name, arg)
		}
		values[i] = value
	}
	return values, nil
}
