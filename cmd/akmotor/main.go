package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	_ "github.com/goakmotor/akmotor/pkg/can/socketcan"
	_ "github.com/goakmotor/akmotor/pkg/can/socketcanv2"
	_ "github.com/goakmotor/akmotor/pkg/can/virtual"
	"github.com/goakmotor/akmotor/pkg/config"
	"github.com/goakmotor/akmotor/pkg/servo"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("c", "", "ini configuration file")
	canInterface := flag.String("i", "", "bus interface e.g. socketcan,socketcanv2,virtualcan")
	channel := flag.String("ch", "", "bus channel e.g. can0,vcan0,localhost:18888")
	motorId := flag.Int("id", -1, "motor id")
	timeoutMs := flag.Int("t", 0, "status timeout in ms")
	count := flag.Int("n", 1, "number of status frames to print, 0 until interrupted")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load configuration : %v", err)
		}
		cfg = loaded
	}
	if *canInterface != "" {
		cfg.Interface = *canInterface
	}
	if *channel != "" {
		cfg.Channel = *channel
	}
	if *motorId >= 0 {
		cfg.MotorID = *motorId
	}
	if *timeoutMs > 0 {
		cfg.StatusTimeout = time.Duration(*timeoutMs) * time.Millisecond
	}
	log.SetLevel(cfg.LogLevel)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	name, args := flag.Arg(0), flag.Args()[1:]
	var command servo.Command
	if name != "status" {
		var err error
		command, err = parseCommand(name, args)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
			os.Exit(2)
		}
	}

	motor, transport, err := cfg.OpenMotor()
	if err != nil {
		log.Fatalf("failed to open motor : %v", err)
	}
	defer transport.Close()

	if command != nil {
		err = motor.Send(command)
		if err != nil {
			log.Errorf("failed to send %v : %v", command.Mode(), err)
			return
		}
		log.Infof("sent %v to motor x%x", command.Mode(), motor.ID())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	printStatus(ctx, motor, cfg.StatusTimeout, *count)
}

func printStatus(ctx context.Context, motor *servo.Motor, timeout time.Duration, count int) {
	for received := 0; count == 0 || received < count; {
		readCtx, cancel := context.WithTimeout(ctx, timeout)
		status, err := motor.ReadStatusContext(readCtx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warnf("no status received from motor x%x within %v", motor.ID(), timeout)
			if count != 0 {
				return
			}
			continue
		}
		if err != nil {
			log.Errorf("failed to read status : %v", err)
			return
		}
		fmt.Println(status)
		received++
	}
}
