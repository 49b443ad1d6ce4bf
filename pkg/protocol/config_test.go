package protocol

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/Optibench/pkg/errors"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:18861", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Motion.SettingsTimeout.Std())
	assert.Equal(t, 250*time.Millisecond, cfg.Motion.PollInterval.Std())
	assert.Equal(t, []int{1152, 1920}, cfg.Display.DefaultShape)
	assert.Equal(t, StageIdentity{Serial: "27257441", Profile: "Z825B"}, cfg.Stages[StageZAxis])
	assert.Equal(t, StageIdentity{Serial: "27266129", Profile: "PRM1-Z8"}, cfg.Stages[StageRotation])
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optibench.yaml")
	body := `
server:
  address: "localhost:19000"
  shutdown_grace: 2s
motion:
  driver: sim
  home_timeout: 30s
stages:
  ZAxis:
    serial: "11111111"
    profile: "Z812"
automation:
  executable: C:\AHK\AutoHotkey.exe
  coordination_file: C:\AHK\pos.txt
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:19000", cfg.Server.Address)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownGrace.Std())
	assert.Equal(t, "sim", cfg.Motion.Driver)
	assert.Equal(t, 30*time.Second, cfg.Motion.HomeTimeout.Std())
	assert.Equal(t, 60*time.Second, cfg.Motion.MoveTimeout.Std(), "unset fields keep defaults")
	assert.Equal(t, "11111111", cfg.Stages[StageZAxis].Serial)
	assert.Equal(t, "27266129", cfg.Stages[StageRotation].Serial, "missing stage filled from defaults")
	assert.Equal(t, `C:\AHK\pos.txt`, cfg.Automation.CoordinationFile)
}

func TestLoadConfig_RejectsNonLoopback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optibench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \"0.0.0.0:18861\"\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfig))
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optibench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("motion:\n  poll_interval: soon\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfig, errors.CodeOf(err))
}

func TestValidate_DuplicateSerial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stages[StageRotation] = StageIdentity{Serial: "27257441", Profile: "PRM1-Z8"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "27257441")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OPTIBENCH_LISTEN":           "127.0.0.1:20000",
		"OPTIBENCH_SIMULATE_DISPLAY": "true",
		"OPTIBENCH_MOTION_DRIVER":    "sim",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := DefaultConfig()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "127.0.0.1:20000", cfg.Server.Address)
	assert.True(t, cfg.Display.Simulate)
	assert.Equal(t, "sim", cfg.Motion.Driver)

	env["OPTIBENCH_SIMULATE_DISPLAY"] = "maybe"
	assert.Error(t, DefaultConfig().applyEnv(lookup))
}

func TestStageType_UnmarshalJSON(t *testing.T) {
	cases := map[string]StageType{
		`"zaxis"`:    StageZAxis,
		`"ZAxis"`:    StageZAxis,
		`"rotation"`: StageRotation,
		`1`:          StageRotation,
		`2`:          StageZAxis,
	}
	for in, want := range cases {
		var got StageType
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.Equal(t, want, got, in)
	}

	var bad StageType
	assert.Error(t, json.Unmarshal([]byte(`3`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`"xaxis"`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}

func TestStageType_Number(t *testing.T) {
	assert.Equal(t, 1, StageRotation.Number())
	assert.Equal(t, 2, StageZAxis.Number())
	assert.False(t, StageType("xaxis").Valid())
}
