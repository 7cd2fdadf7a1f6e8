// Package config loads armgate's configuration.
//
// Values are layered: built-in defaults, then an optional YAML file
// (--config), then ARMGATE_* environment variables, then command-line
// flags. Later layers win.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable armgate reads.
const EnvPrefix = "ARMGATE_"

// Defaults.
const (
	DefaultSleep          = 0.1 // seconds
	DefaultAcceleration   = 0.5 // rad/s^2
	DefaultVelocity       = 0.1 // rad/s
	DefaultConnectTimeout = time.Second
	DefaultLogLevel       = "info"
)

// ErrHelp is returned by Load when help was requested.
var ErrHelp = flag.ErrHelp

// Config is armgate's runtime configuration.
type Config struct {
	ID             uint16        `yaml:"id" env:"ID"`
	StatusPort     string        `yaml:"status_port" env:"STATUS_PORT"`
	RobotArmHost   string        `yaml:"robot_arm_host" env:"ROBOT_ARM_HOST"`
	RobotArmPort   string        `yaml:"robot_arm_port" env:"ROBOT_ARM_PORT"`
	RobotArmStatus string        `yaml:"robot_arm_status" env:"ROBOT_ARM_STATUS"`
	Sleep          float64       `yaml:"sleep" env:"SLEEP"`
	Verbose        bool          `yaml:"verbose" env:"VERBOSE"`
	TelemetryPort  string        `yaml:"telemetry_port" env:"TELEMETRY_PORT"`
	Acceleration   float64       `yaml:"acceleration" env:"ACCELERATION"`
	Velocity       float64       `yaml:"velocity" env:"VELOCITY"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFile        string        `yaml:"log_file" env:"LOG_FILE"`
	QueueSize      int           `yaml:"queue_size" env:"QUEUE_SIZE"`

	// File is the YAML file the config was read from, if any.
	File string `yaml:"-" env:"-"`

	idSet bool
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Sleep:          DefaultSleep,
		Acceleration:   DefaultAcceleration,
		Velocity:       DefaultVelocity,
		ConnectTimeout: DefaultConnectTimeout,
		LogLevel:       DefaultLogLevel,
	}
}

// Period returns the tick period.
func (c *Config) Period() time.Duration {
	return time.Duration(c.Sleep * float64(time.Second))
}

// PublishAddr is the listen address for position subscribers.
func (c *Config) PublishAddr() string {
	return ":" + c.StatusPort
}

// TelemetryAddr is the telemetry listen address, or "" when disabled.
func (c *Config) TelemetryAddr() string {
	if c.TelemetryPort == "" {
		return ""
	}
	return ":" + c.TelemetryPort
}

// ArmAddr is the arm's script port address.
func (c *Config) ArmAddr() string {
	return net.JoinHostPort(c.RobotArmHost, c.RobotArmPort)
}

// NewFlagSet declares armgate's flags. "--sp" is accepted as an alias of
// "--status-port".
func NewFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SortFlags = false

	fs.BoolP("help", "h", false, "show this message")
	fs.BoolP("verbose", "v", false, "show messages to the robot arm, angles in degrees")
	fs.Uint16("id", 0, "* session id commands must carry, e.g. 1,<id>,set_pos,home;")
	fs.String("status-port", "", "* TCP port current positions are published on (alias --sp, -sp)")
	fs.String("robot-arm-host", "", "* host name or IP of the robot arm")
	fs.String("robot-arm-port", "", "* TCP port of the robot arm's script interface")
	fs.String("robot-arm-status", "", "* TCP port of the robot arm's real-time status stream")
	fs.Float64("sleep", DefaultSleep, "loop sleep in seconds")
	fs.String("config", "", "YAML configuration file")
	fs.String("telemetry-port", "", "serve HTTP/websocket telemetry on this port")
	fs.Float64("acceleration", DefaultAcceleration, "joint acceleration for movej, rad/s^2")
	fs.Float64("velocity", DefaultVelocity, "joint velocity for movej, rad/s")
	fs.Duration("connect-timeout", DefaultConnectTimeout, "timeout for connecting to the robot arm")
	fs.String("log-level", DefaultLogLevel, "log level: debug, info, warn, error")
	fs.String("log-file", "", "write logs to this rotated file instead of stderr")
	fs.Int("queue-size", 0, "maximum queued commands (0 for the default)")

	fs.SetNormalizeFunc(func(f *flag.FlagSet, name string) flag.NormalizedName {
		if name == "sp" {
			name = "status-port"
		}
		return flag.NormalizedName(name)
	})
	return fs
}

// longAliases rewrites the single-dash "-sp" form to "--sp"; pflag would
// otherwise read it as the shorthands -s and -p.
func longAliases(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if arg == "--" {
			copy(out[i:], args[i:])
			break
		}
		if arg == "-sp" || strings.HasPrefix(arg, "-sp=") {
			arg = "-" + arg
		}
		out[i] = arg
	}
	return out
}

// Load builds the configuration from args (without the program name) and
// the process environment. It returns ErrHelp if --help was given.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("armgate")
	fs.Usage = func() {}
	if err := fs.Parse(longAliases(args)); err != nil {
		return nil, err
	}
	if help, _ := fs.GetBool("help"); help {
		return nil, ErrHelp
	}

	cfg := Default()

	if path, _ := fs.GetString("config"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.applyFlags(fs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	var keys map[string]any
	if err := yaml.Unmarshal(data, &keys); err == nil {
		if _, ok := keys["id"]; ok {
			c.idSet = true
		}
	}
	c.File = path
	return nil
}

func (c *Config) loadEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if _, ok := os.LookupEnv(EnvPrefix + "ID"); ok {
		c.idSet = true
	}
	return nil
}

func (c *Config) applyFlags(fs *flag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && fs.Changed(name) {
			err = apply()
		}
	}

	set("id", func() (e error) {
		c.ID, e = fs.GetUint16("id")
		c.idSet = true
		return
	})
	set("status-port", func() (e error) { c.StatusPort, e = fs.GetString("status-port"); return })
	set("robot-arm-host", func() (e error) { c.RobotArmHost, e = fs.GetString("robot-arm-host"); return })
	set("robot-arm-port", func() (e error) { c.RobotArmPort, e = fs.GetString("robot-arm-port"); return })
	set("robot-arm-status", func() (e error) { c.RobotArmStatus, e = fs.GetString("robot-arm-status"); return })
	set("sleep", func() (e error) { c.Sleep, e = fs.GetFloat64("sleep"); return })
	set("verbose", func() (e error) { c.Verbose, e = fs.GetBool("verbose"); return })
	set("telemetry-port", func() (e error) { c.TelemetryPort, e = fs.GetString("telemetry-port"); return })
	set("acceleration", func() (e error) { c.Acceleration, e = fs.GetFloat64("acceleration"); return })
	set("velocity", func() (e error) { c.Velocity, e = fs.GetFloat64("velocity"); return })
	set("connect-timeout", func() (e error) { c.ConnectTimeout, e = fs.GetDuration("connect-timeout"); return })
	set("log-level", func() (e error) { c.LogLevel, e = fs.GetString("log-level"); return })
	set("log-file", func() (e error) { c.LogFile, e = fs.GetString("log-file"); return })
	set("queue-size", func() (e error) { c.QueueSize, e = fs.GetInt("queue-size"); return })

	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}
	return nil
}

// Validate reports missing required options and out-of-range values.
func (c *Config) Validate() error {
	var missing []string
	if !c.idSet {
		missing = append(missing, "--id")
	}
	if c.StatusPort == "" {
		missing = append(missing, "--status-port")
	}
	if c.RobotArmHost == "" {
		missing = append(missing, "--robot-arm-host")
	}
	if c.RobotArmPort == "" {
		missing = append(missing, "--robot-arm-port")
	}
	if c.RobotArmStatus == "" {
		missing = append(missing, "--robot-arm-status")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required option(s): %s", strings.Join(missing, ", ")))
	}
	for _, p := range []struct{ name, value string }{
		{"--status-port", c.StatusPort},
		{"--robot-arm-port", c.RobotArmPort},
		{"--robot-arm-status", c.RobotArmStatus},
		{"--telemetry-port", c.TelemetryPort},
	} {
		if p.value == "" {
			continue
		}
		if n, err := strconv.ParseUint(p.value, 10, 16); err != nil || n == 0 {
			errs = append(errs, fmt.Errorf("%s: invalid port %q", p.name, p.value))
		}
	}
	if c.Sleep <= 0 {
		errs = append(errs, fmt.Errorf("--sleep must be positive, got %v", c.Sleep))
	}
	if c.Acceleration <= 0 || c.Velocity <= 0 {
		errs = append(errs, fmt.Errorf("--acceleration and --velocity must be positive"))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--connect-timeout must be positive, got %v", c.ConnectTimeout))
	}
	return errors.Join(errs...)
}

// Usage is the help text printed for --help.
func Usage(fs *flag.FlagSet) string {
	var sb strings.Builder
	sb.WriteString("armgate: UR10 robot arm command gateway\n\n")
	sb.WriteString("example: socat tcp-listen:9999,reuseaddr EXEC:\"armgate --id 7 --status-port 30010 --robot-arm-host 192.168.0.10 --robot-arm-port 30002 --robot-arm-status 30003\"\n")
	sb.WriteString("    reads commands from TCP port 9999, answers on the same connection and drives the arm at 192.168.0.10\n\n")
	sb.WriteString("options (* required):\n")
	sb.WriteString(fs.FlagUsages())
	sb.WriteString("\nevery option can also be set in the --config YAML file or as an ")
	sb.WriteString(EnvPrefix)
	sb.WriteString("<OPTION> environment variable, e.g. ARMGATE_ROBOT_ARM_HOST\n\n")
	sb.WriteString("status port frames: status uint8, 6 joint angles float64 little-endian radians, 49 bytes\n")
	return sb.String()
}
