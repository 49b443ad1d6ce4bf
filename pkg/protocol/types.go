package protocol

import "time"

// Config represents the root configuration of the control host.
type Config struct {
	Version       string                      `yaml:"version"`
	Server        ServerConfig                `yaml:"server"`
	Display       DisplayConfig               `yaml:"display"`
	Motion        MotionConfig                `yaml:"motion"`
	Stages        map[StageType]StageIdentity `yaml:"stages"`
	Automation    AutomationConfig            `yaml:"automation"`
	Observability ObservabilityConfig         `yaml:"observability"`
}

type ServerConfig struct {
	Address       string   `yaml:"address"`        // Must be loopback
	ShutdownGrace Duration `yaml:"shutdown_grace"` // In-flight grace before forced teardown
}

type DisplayConfig struct {
	Driver       string `yaml:"driver"`
	Simulate     bool   `yaml:"simulate"`
	SDKPath      string `yaml:"sdk_path"`
	LUTPath      string `yaml:"lut_path"`
	DefaultShape []int  `yaml:"default_shape"` // [height, width] used in simulated mode
}

type MotionConfig struct {
	Driver          string   `yaml:"driver"`
	SettingsTimeout Duration `yaml:"settings_timeout"`
	PollInterval    Duration `yaml:"poll_interval"`
	EnableSettle    Duration `yaml:"enable_settle"`
	HomeTimeout     Duration `yaml:"home_timeout"`
	MoveTimeout     Duration `yaml:"move_timeout"`
}

// StageIdentity is the fixed (serial, settings profile) pair of a stage type.
type StageIdentity struct {
	Serial  string `yaml:"serial"`
	Profile string `yaml:"profile"`
}

type AutomationConfig struct {
	Executable       string `yaml:"executable"`
	CaptureScript    string `yaml:"capture_script"`
	ClickScript      string `yaml:"click_script"`
	CoordinationFile string `yaml:"coordination_file"`
}

type ObservabilityConfig struct {
	MetricsPort string `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// Duration is a time.Duration that reads Go duration strings ("250ms", "5s") from YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Personal.AI order the ending
