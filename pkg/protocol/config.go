package protocol

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/Optibench/pkg/consts"
	"github.com/turtacn/Optibench/pkg/errors"
	"gopkg.in/yaml.v3"
)

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Value == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns the configuration of the reference bench.
func DefaultConfig() *Config {
	stages := make(map[StageType]StageIdentity, len(DefaultStageIdentities))
	for k, v := range DefaultStageIdentities {
		stages[k] = v
	}
	return &Config{
		Version: "1",
		Server: ServerConfig{
			Address:       consts.DefaultListenAddr,
			ShutdownGrace: Duration(consts.DefaultShutdownGrace),
		},
		Display: DisplayConfig{
			Driver:       consts.DefaultDisplayDriver,
			SDKPath:      consts.DefaultSLMSDKPath,
			LUTPath:      consts.DefaultSLMLUTPath,
			DefaultShape: []int{consts.DefaultDisplayHeight, consts.DefaultDisplayWidth},
		},
		Motion: MotionConfig{
			Driver:          consts.DefaultMotionDriver,
			SettingsTimeout: Duration(consts.DefaultSettingsTimeout),
			PollInterval:    Duration(consts.DefaultPollInterval),
			EnableSettle:    Duration(consts.DefaultEnableSettle),
			HomeTimeout:     Duration(consts.DefaultHomeTimeout),
			MoveTimeout:     Duration(consts.DefaultMoveTimeout),
		},
		Stages: stages,
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// LoadConfig reads the YAML file at path over DefaultConfig, applies
// OPTIBENCH_* environment overrides and validates the result.
// A missing file is not an error; the defaults are used.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Stage keys from the file are normalized in Validate; defaults are
		// filled in afterwards so a differently spelled key cannot collide.
		cfg.Stages = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New(errors.ErrCodeConfig, "LoadConfig", "cannot parse "+path, err)
		}
	case stderrors.Is(err, fs.ErrNotExist):
	default:
		return nil, errors.New(errors.ErrCodeConfig, "LoadConfig", "cannot read "+path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(consts.EnvPrefix + "LISTEN"); ok && v != "" {
		c.Server.Address = v
	}
	if v, ok := lookup(consts.EnvPrefix + "LOG_LEVEL"); ok && v != "" {
		c.Observability.LogLevel = v
	}
	if v, ok := lookup(consts.EnvPrefix + "MOTION_DRIVER"); ok && v != "" {
		c.Motion.Driver = v
	}
	if v, ok := lookup(consts.EnvPrefix + "SIMULATE_DISPLAY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New(errors.ErrCodeConfig, "LoadConfig", consts.EnvPrefix+"SIMULATE_DISPLAY must be a boolean", err)
		}
		c.Display.Simulate = b
	}
	return nil
}

// Validate checks the invariants the host relies on and fills in stage
// identities that the file left out.
func (c *Config) Validate() error {
	if err := CheckLoopback(c.Server.Address); err != nil {
		return errors.New(errors.ErrCodeConfig, "Validate", "server.address", err)
	}
	if c.Server.ShutdownGrace < 0 {
		return errors.New(errors.ErrCodeConfig, "Validate", "server.shutdown_grace must not be negative", nil)
	}

	if len(c.Display.DefaultShape) != 2 || c.Display.DefaultShape[0] <= 0 || c.Display.DefaultShape[1] <= 0 {
		return errors.New(errors.ErrCodeConfig, "Validate",
			fmt.Sprintf("display.default_shape must be [height, width], got %v", c.Display.DefaultShape), nil)
	}

	stages := make(map[StageType]StageIdentity, len(c.Stages))
	for raw, id := range c.Stages {
		t, err := ParseStageType(string(raw))
		if err != nil {
			return errors.New(errors.ErrCodeConfig, "Validate", "stages", err)
		}
		if id.Serial == "" || id.Profile == "" {
			return errors.New(errors.ErrCodeConfig, "Validate", fmt.Sprintf("stage %s needs both serial and profile", t), nil)
		}
		stages[t] = id
	}
	c.Stages = stages
	for t, id := range DefaultStageIdentities {
		if _, ok := c.Stages[t]; !ok {
			c.Stages[t] = id
		}
	}
	seen := make(map[string]StageType, len(c.Stages))
	for t, id := range c.Stages {
		if other, dup := seen[id.Serial]; dup {
			return errors.New(errors.ErrCodeConfig, "Validate",
				fmt.Sprintf("serial %s assigned to both %s and %s", id.Serial, other, t), nil)
		}
		seen[id.Serial] = t
	}
	return nil
}

// CheckLoopback accepts host:port addresses whose host is "localhost" or a
// loopback IP. An empty host would bind every interface and is rejected.
func CheckLoopback(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if port == "" {
		return fmt.Errorf("missing port in %q", addr)
	}
	if strings.EqualFold(host, "localhost") {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%q is not a loopback address", host)
	}
	return nil
}

// Personal.AI order the ending
