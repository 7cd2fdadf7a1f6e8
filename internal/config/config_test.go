package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var required = []string{
	"--id", "7",
	"--status-port", "30010",
	"--robot-arm-host", "192.168.0.10",
	"--robot-arm-port", "30002",
	"--robot-arm-status", "30003",
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "armgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(required)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.ID != 7 {
		t.Errorf("ID: got %d, want 7", cfg.ID)
	}
	if cfg.Period() != 100*time.Millisecond {
		t.Errorf("Period: got %v, want 100ms", cfg.Period())
	}
	if cfg.Acceleration != 0.5 || cfg.Velocity != 0.1 {
		t.Errorf("motion: got a=%v v=%v, want 0.5/0.1", cfg.Acceleration, cfg.Velocity)
	}
	if cfg.PublishAddr() != ":30010" {
		t.Errorf("PublishAddr: got %s", cfg.PublishAddr())
	}
	if cfg.ArmAddr() != "192.168.0.10:30002" {
		t.Errorf("ArmAddr: got %s", cfg.ArmAddr())
	}
	if cfg.TelemetryAddr() != "" {
		t.Errorf("TelemetryAddr: got %q, want disabled", cfg.TelemetryAddr())
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %s, want info", cfg.LogLevel)
	}
}

func TestLoad_StatusPortAlias(t *testing.T) {
	cfg, err := Load([]string{"--sp", "4000", "-v", "--sleep", "0.25"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StatusPort != "4000" {
		t.Errorf("StatusPort: got %q, want 4000", cfg.StatusPort)
	}
	if !cfg.Verbose {
		t.Error("Verbose should be set by -v")
	}
	if cfg.Period() != 250*time.Millisecond {
		t.Errorf("Period: got %v, want 250ms", cfg.Period())
	}
}

func TestLoad_Help(t *testing.T) {
	for _, arg := range []string{"--help", "-h"} {
		if _, err := Load([]string{arg}); !errors.Is(err, ErrHelp) {
			t.Errorf("Load(%s): got %v, want ErrHelp", arg, err)
		}
	}
}

func TestLoad_UnknownFlag(t *testing.T) {
	if _, err := Load([]string{"--bogus"}); err == nil {
		t.Error("unknown flag should fail")
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	cfg, err := Load([]string{"--id", "0", "--robot-arm-host", "arm"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("Validate should fail")
	}
	msg := err.Error()
	for _, want := range []string{"--status-port", "--robot-arm-port", "--robot-arm-status"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should name %s", msg, want)
		}
	}
	if strings.Contains(msg, "--id") {
		t.Errorf("--id 0 was given explicitly: %q", msg)
	}
}

func TestValidate_MissingID(t *testing.T) {
	cfg, err := Load(required[2:])
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "--id") {
		t.Errorf("Validate: got %v, want missing --id", err)
	}
}

func TestValidate_BadValues(t *testing.T) {
	args := append([]string{"--sleep", "0", "--robot-arm-status", "http"}, required[:8]...)
	cfg, err := Load(args)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("Validate should fail")
	}
	if !strings.Contains(err.Error(), "--sleep") {
		t.Errorf("error %q should mention --sleep", err)
	}
	if !strings.Contains(err.Error(), "invalid port") {
		t.Errorf("error %q should mention the bad port", err)
	}
}

func TestLoad_Layering(t *testing.T) {
	path := writeFile(t, `
id: 3
status_port: "30010"
robot_arm_host: file-host
robot_arm_port: "30002"
robot_arm_status: "30003"
velocity: 0.2
connect_timeout: 2s
log_level: debug
`)
	t.Setenv("ARMGATE_ROBOT_ARM_HOST", "env-host")
	t.Setenv("ARMGATE_VELOCITY", "0.3")

	cfg, err := Load([]string{"--config", path, "--velocity", "0.4"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.ID != 3 {
		t.Errorf("ID from file: got %d, want 3", cfg.ID)
	}
	if cfg.RobotArmHost != "env-host" {
		t.Errorf("env should override file: got %s", cfg.RobotArmHost)
	}
	if cfg.Velocity != 0.4 {
		t.Errorf("flag should override env: got %v", cfg.Velocity)
	}
	if cfg.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout: got %v, want 2s", cfg.ConnectTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %s, want debug", cfg.LogLevel)
	}
	if cfg.Acceleration != DefaultAcceleration {
		t.Errorf("unset values keep defaults: got %v", cfg.Acceleration)
	}
	if cfg.File != path {
		t.Errorf("File: got %s, want %s", cfg.File, path)
	}
}

func TestLoad_EnvID(t *testing.T) {
	t.Setenv("ARMGATE_ID", "12")
	cfg, err := Load(required[2:])
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.ID != 12 {
		t.Errorf("ID: got %d, want 12", cfg.ID)
	}
}

func TestLoad_EnvError(t *testing.T) {
	t.Setenv("ARMGATE_SLEEP", "soon")
	_, err := Load(required)
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("got %v, want parse env error", err)
	}
}

func TestLoad_BadFile(t *testing.T) {
	if _, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("missing config file should fail")
	}

	path := writeFile(t, "id: [not, a, number]\n")
	if _, err := Load([]string{"--config", path}); err == nil {
		t.Error("malformed config file should fail")
	}
}

func TestUsage(t *testing.T) {
	usage := Usage(NewFlagSet("armgate"))
	for _, want := range []string{"--robot-arm-host", "--status-port", "-v, --verbose", "ARMGATE_"} {
		if !strings.Contains(usage, want) {
			t.Errorf("usage should mention %q", want)
		}
	}
}

func TestLoad_LogFile(t *testing.T) {
	t.Setenv("ARMGATE_LOG_FILE", "/var/log/env.log")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogFile != "/var/log/env.log" {
		t.Errorf("LogFile from env: got %q", cfg.LogFile)
	}

	cfg, err = Load([]string{"--log-file", "/tmp/armgate.log"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogFile != "/tmp/armgate.log" {
		t.Errorf("LogFile from flag: got %q", cfg.LogFile)
	}
}

func TestLoad_SingleDashStatusPort(t *testing.T) {
	for _, args := range [][]string{
		{"-sp", "4001"},
		{"-sp=4001"},
	} {
		cfg, err := Load(args)
		if err != nil {
			t.Fatalf("Load(%q): %v", args, err)
		}
		if cfg.StatusPort != "4001" {
			t.Errorf("Load(%q) StatusPort: got %q, want 4001", args, cfg.StatusPort)
		}
	}
}
