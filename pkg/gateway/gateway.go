// Package gateway runs the armgate control loop.
//
// Each tick polls the status link, takes at most one command from the
// input, steps the motion engine, forwards a movej to the arm when the
// engine raises its command flag, and publishes the current positions.
// All engine register access happens on the goroutine calling Run.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-armgate/internal/log"
	"github.com/teslashibe/go-armgate/pkg/armlink"
	"github.com/teslashibe/go-armgate/pkg/command"
	"github.com/teslashibe/go-armgate/pkg/debug"
	"github.com/teslashibe/go-armgate/pkg/engine"
	"github.com/teslashibe/go-armgate/pkg/protocol"
	"github.com/teslashibe/go-armgate/pkg/publisher"
	"github.com/teslashibe/go-armgate/pkg/status"
	"github.com/teslashibe/go-armgate/pkg/statuslink"
	"github.com/teslashibe/go-armgate/pkg/telemetry"
)

const (
	// DefaultPeriod is the nominal tick period.
	DefaultPeriod = 100 * time.Millisecond

	// heartbeatTicks is how often the loop logs its counters.
	heartbeatTicks = 100

	// errorLogInterval limits repeated warnings to one per interval.
	errorLogInterval = 5 * time.Second
)

// ArmSender forwards serialized commands to the arm.
type ArmSender interface {
	Send(cmd string) error
	Close() error
}

// StatusPoller drains the arm's status stream.
type StatusPoller interface {
	Poll() (frame []byte, fresh bool, err error)
	Frames() uint64
	Skipped() uint64
	Close() error
}

// PositionPublisher fans current positions out to subscribers.
type PositionPublisher interface {
	Publish(pos status.CurrentPositions) error
	Close() error
}

// Emitter receives diagnostic telemetry.
type Emitter interface {
	EmitStatus(frame *status.Frame, frames, skipped uint64)
	EmitPositions(pos status.CurrentPositions)
	EmitResponse(r protocol.ResponseData)
	EmitState(st protocol.StateData)
	Close() error
}

// Config holds what the gateway needs to connect and tick.
type Config struct {
	// Session is the id commands must carry in their session field.
	Session uint16

	ArmHost    string
	ArmPort    string
	StatusPort string // Arm real-time status port, dialled on ArmHost

	// PublishAddr is where position subscribers connect, e.g. ":30010".
	PublishAddr string

	// TelemetryAddr enables the diagnostic HTTP server when set.
	TelemetryAddr string

	Period         time.Duration
	ConnectTimeout time.Duration
	QueueSize      int
}

// Gateway owns the links and the control loop.
type Gateway struct {
	cfg    Config
	logger *slog.Logger
	runID  uuid.UUID

	adapter    *engine.Adapter
	source     *command.Source
	dispatcher *command.Dispatcher
	out        io.Writer

	arm       ArmSender
	status    StatusPoller
	publisher PositionPublisher
	telemetry Emitter

	statusDown    bool
	lastStatus    *status.Frame
	lastErrorTime time.Time
	started       time.Time

	mu    sync.RWMutex
	state State
	stats Stats

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway's logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// WithArm supplies an already connected arm link.
func WithArm(a ArmSender) Option {
	return func(g *Gateway) {
		g.arm = a
	}
}

// WithStatus supplies an already connected status link.
func WithStatus(s StatusPoller) Option {
	return func(g *Gateway) {
		g.status = s
	}
}

// WithPublisher supplies the position publisher.
func WithPublisher(p PositionPublisher) Option {
	return func(g *Gateway) {
		g.publisher = p
	}
}

// WithTelemetry supplies the telemetry emitter.
func WithTelemetry(e Emitter) Option {
	return func(g *Gateway) {
		g.telemetry = e
	}
}

// Open performs startup: it connects to the arm, opens the subscriber
// port, connects the status link and, if configured, starts telemetry.
// Components supplied through options are used as given. Any failure
// closes what was opened and is returned; the adapter stays with the
// caller in that case.
func Open(ctx context.Context, cfg Config, adapter *engine.Adapter, in io.Reader, out io.Writer, opts ...Option) (*Gateway, error) {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}

	g := &Gateway{
		cfg:     cfg,
		runID:   uuid.New(),
		adapter: adapter,
		out:     out,
		state:   Starting,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.With("component", "gateway")
	}
	g.logger = g.logger.With("run_id", g.runID.String())
	g.logger.Info("starting", "session", cfg.Session, "period", cfg.Period)

	if err := g.connect(ctx); err != nil {
		g.closeLinks()
		return nil, err
	}

	sourceOpts := []command.SourceOption{command.WithLogger(g.logger)}
	if cfg.QueueSize > 0 {
		sourceOpts = append(sourceOpts, command.WithQueueSize(cfg.QueueSize))
	}
	g.source = command.NewSource(in, cfg.Session, sourceOpts...)
	g.dispatcher = command.NewDispatcher(adapter.Inputs)
	return g, nil
}

func (g *Gateway) connect(ctx context.Context) error {
	if g.arm == nil {
		link, err := armlink.Dial(ctx, g.cfg.ArmHost, g.cfg.ArmPort, g.cfg.ConnectTimeout)
		if err != nil {
			return err
		}
		g.arm = link
		g.logger.Info("connected to robot arm", "addr", link.Addr())
	}

	if g.publisher == nil {
		pub, err := publisher.Listen(g.cfg.PublishAddr, publisher.WithLogger(g.logger))
		if err != nil {
			return err
		}
		g.publisher = pub
	}

	if g.status == nil {
		addr := net.JoinHostPort(g.cfg.ArmHost, g.cfg.StatusPort)
		link, err := statuslink.Dial(ctx, addr, g.cfg.ConnectTimeout)
		if err != nil {
			return err
		}
		g.status = link
		g.logger.Info("connected to robot arm status", "addr", link.Addr())
	}

	if g.telemetry == nil && g.cfg.TelemetryAddr != "" {
		srv := telemetry.NewServer(g.cfg.TelemetryAddr,
			telemetry.WithLogger(g.logger),
			telemetry.WithStats(func() any { return g.Stats() }),
		)
		if err := srv.Start(); err != nil {
			return err
		}
		g.telemetry = srv
	}
	return nil
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gateway) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()

	g.logger.Info("state changed", "state", s.String())
	if g.telemetry != nil {
		g.telemetry.EmitState(protocol.StateData{
			State:           s.String(),
			RunID:           g.runID.String(),
			ArmConnected:    g.arm != nil && s < Stopping,
			StatusConnected: g.status != nil && !g.statusDown && s < Stopping,
		})
	}
}

// Stats returns a snapshot of the loop counters. Safe to call from any
// goroutine.
func (g *Gateway) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	st := g.stats
	st.RunID = g.runID.String()
	st.State = g.state.String()
	if !g.started.IsZero() {
		st.Uptime = time.Since(g.started).Truncate(time.Millisecond).String()
	}
	return st
}

func (g *Gateway) count(fn func(*Stats)) {
	g.mu.Lock()
	fn(&g.stats)
	g.mu.Unlock()
}

// Run ticks until ctx is cancelled or the input has ended and every
// queued command has been dispatched. It always shuts the gateway down
// before returning. A non-nil error means the loop failed.
func (g *Gateway) Run(ctx context.Context) error {
	g.mu.Lock()
	g.started = time.Now()
	g.mu.Unlock()
	g.setState(Running)

	runErr := g.loop(ctx)
	if runErr != nil {
		g.logger.Error("control loop failed", "error", runErr)
	}

	if err := g.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (g *Gateway) loop(ctx context.Context) error {
	timer := time.NewTimer(g.cfg.Period)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			g.logger.Info("shutdown requested")
			return nil
		}

		start := time.Now()
		if err := g.tick(); err != nil {
			return err
		}
		g.afterTick(time.Since(start))

		if g.source.Done() {
			if err := g.source.Err(); err != nil {
				g.logger.Warn("command input failed", "error", err)
			}
			g.logger.Info("command input ended")
			return nil
		}

		timer.Reset(g.cfg.Period)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}

// tick runs one control cycle. The order of the steps is fixed.
func (g *Gateway) tick() error {
	g.pollStatus()

	g.source.Read()
	if tokens, ok := g.source.Next(); ok {
		if err := g.dispatch(tokens); err != nil {
			return err
		}
	}

	g.adapter.Step()

	if g.adapter.CommandReady() {
		debug.Logln(g.adapter.Debug())
		if err := g.arm.Send(g.adapter.Serialize()); err != nil {
			return fmt.Errorf("send command to robot arm: %w", err)
		}
		g.adapter.ClearPrimitive()
		g.count(func(s *Stats) { s.ArmCommands++ })
	}

	g.adapter.ResetInputs()

	pos := g.adapter.CurrentPositions()
	if err := g.publisher.Publish(pos); err != nil {
		g.warn("failed to publish positions", "error", err)
	} else {
		g.count(func(s *Stats) { s.Published++ })
	}
	if g.telemetry != nil {
		g.telemetry.EmitPositions(pos)
	}
	return nil
}

func (g *Gateway) dispatch(tokens []string) error {
	resp := g.dispatcher.Dispatch(tokens)
	line := resp.Line()

	if _, err := fmt.Fprintln(g.out, line); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	g.count(func(s *Stats) {
		s.Commands++
		if !resp.Result.OK() {
			s.Rejected++
		}
	})
	if !resp.Result.OK() {
		g.logger.Debug("command rejected", "command", resp.Echo, "result", resp.Result.Code.String(), "message", resp.Result.Message)
	}

	if g.telemetry != nil {
		g.telemetry.EmitResponse(protocol.ResponseData{
			Command: resp.Echo,
			Code:    int(resp.Result.Code),
			Result:  resp.Result.Code.String(),
			Message: resp.Result.Message,
			Line:    line,
		})
	}
	return nil
}

// pollStatus takes the freshest status frame, if any. Status problems
// never stop the loop.
func (g *Gateway) pollStatus() {
	if g.status == nil || g.statusDown {
		return
	}

	frame, fresh, err := g.status.Poll()
	if fresh {
		f, derr := status.Decode(frame)
		if derr != nil {
			g.count(func(s *Stats) { s.StatusErrors++ })
			g.warn("failed to decode status frame", "error", derr)
		} else {
			g.lastStatus = f
			if g.logger.Enabled(context.Background(), slog.LevelDebug) {
				if data, err := json.Marshal(f); err == nil {
					g.logger.Debug("status", "frame", string(data))
				}
			}
			if g.telemetry != nil {
				g.telemetry.EmitStatus(f, g.status.Frames(), g.status.Skipped())
			}
		}
		g.count(func(s *Stats) {
			s.StatusFrames = g.status.Frames()
			s.StatusSkipped = g.status.Skipped()
		})
	}

	if err != nil {
		g.statusDown = true
		g.count(func(s *Stats) { s.StatusLinkDown = true })
		if errors.Is(err, statuslink.ErrBroken) {
			g.logger.Warn("status link lost, continuing without status", "error", err)
		} else {
			g.logger.Warn("status link failed, continuing without status", "error", err)
		}
	}
}

// LastStatus returns the freshest decoded status frame, or nil.
func (g *Gateway) LastStatus() *status.Frame {
	return g.lastStatus
}

func (g *Gateway) afterTick(elapsed time.Duration) {
	var st Stats
	g.mu.Lock()
	g.stats.Ticks++
	g.stats.LastTickDuration = elapsed
	if elapsed > g.cfg.Period {
		g.stats.Overruns++
	}
	g.stats.DroppedInput = g.source.Dropped()
	st = g.stats
	g.mu.Unlock()

	if elapsed > g.cfg.Period {
		g.warn("tick overran its period", "took", elapsed, "period", g.cfg.Period, "overruns", st.Overruns)
	}

	// Heartbeat log every heartbeatTicks ticks
	if st.Ticks%heartbeatTicks == 0 {
		g.logger.Info("heartbeat",
			"ticks", st.Ticks,
			"overruns", st.Overruns,
			"commands", st.Commands,
			"arm_commands", st.ArmCommands,
			"status_frames", st.StatusFrames,
		)
	}
}

// warn logs at most once per errorLogInterval.
func (g *Gateway) warn(msg string, args ...any) {
	if g.lastErrorTime.IsZero() || time.Since(g.lastErrorTime) > errorLogInterval {
		g.logger.Warn(msg, args...)
		g.lastErrorTime = time.Now()
	}
}

func (g *Gateway) closeLinks() error {
	var errs []error
	if g.arm != nil {
		if err := g.arm.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close arm link: %w", err))
		}
	}
	if g.publisher != nil {
		if err := g.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if g.status != nil {
		if err := g.status.Close(); err != nil && !g.statusDown {
			errs = append(errs, fmt.Errorf("close status link: %w", err))
		}
	}
	if g.telemetry != nil {
		if err := g.telemetry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close shuts the gateway down: STOPPING closes the links, TERMINATED
// closes the engine adapter. Calling Close more than once is a no-op.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		g.setState(Stopping)
		linkErr := g.closeLinks()
		if linkErr != nil {
			g.logger.Warn("error while closing links", "error", linkErr)
		}

		g.mu.Lock()
		g.state = Terminated
		g.mu.Unlock()
		g.logger.Info("state changed", "state", Terminated.String())

		if err := g.adapter.Close(); err != nil {
			g.closeErr = fmt.Errorf("close engine: %w", err)
		}
	})
	return g.closeErr
}
