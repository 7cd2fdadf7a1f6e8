// Command armgate bridges a line-based command protocol on stdin/stdout to
// a UR10 robot arm and publishes the arm's joint positions to TCP
// subscribers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-armgate/internal/config"
	"github.com/teslashibe/go-armgate/internal/log"
	"github.com/teslashibe/go-armgate/pkg/debug"
	"github.com/teslashibe/go-armgate/pkg/engine"
	"github.com/teslashibe/go-armgate/pkg/gateway"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run returns the process exit code.
func run(args []string, stderr io.Writer) int {
	cfg, err := config.Load(args)
	if errors.Is(err, config.ErrHelp) {
		fmt.Fprint(stderr, config.Usage(config.NewFlagSet("armgate")))
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "armgate: %v\n\n", err)
		fmt.Fprint(stderr, config.Usage(config.NewFlagSet("armgate")))
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "armgate: %v\n\n", err)
		fmt.Fprint(stderr, config.Usage(config.NewFlagSet("armgate")))
		return 1
	}

	log.InitFile(cfg.LogLevel, cfg.LogFile)
	debug.Enabled = cfg.Verbose

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter := engine.NewAdapter(engine.NewSimulator(),
		engine.WithMotion(cfg.Acceleration, cfg.Velocity),
		engine.WithStdio(os.Stdin, os.Stdout, os.Stderr),
	)

	log.Info("armgate started",
		"id", cfg.ID,
		"robot_arm", cfg.ArmAddr(),
		"status_port", cfg.StatusPort,
		"config", cfg.File,
	)

	gw, err := gateway.Open(ctx, gateway.Config{
		Session:        cfg.ID,
		ArmHost:        cfg.RobotArmHost,
		ArmPort:        cfg.RobotArmPort,
		StatusPort:     cfg.RobotArmStatus,
		PublishAddr:    cfg.PublishAddr(),
		TelemetryAddr:  cfg.TelemetryAddr(),
		Period:         cfg.Period(),
		ConnectTimeout: cfg.ConnectTimeout,
		QueueSize:      cfg.QueueSize,
	}, adapter, os.Stdin, os.Stdout)
	if err != nil {
		log.Error("startup failed", "error", err)
		adapter.Close()
		return 1
	}

	if err := gw.Run(ctx); err != nil {
		log.Error("armgate stopped", "error", err)
		return 1
	}
	log.Info("armgate stopped", "ticks", gw.Stats().Ticks)
	return 0
}
