package stage

import (
	stderrors "errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/Optibench/internal/motion"
	"github.com/turtacn/Optibench/internal/motion/simmotion"
	"github.com/turtacn/Optibench/pkg/consts"
	"github.com/turtacn/Optibench/pkg/errors"
	"github.com/turtacn/Optibench/pkg/protocol"
)

const zSerial = "27257441"

func zConfig() Config {
	return Config{
		Type:            protocol.StageZAxis,
		Identity:        protocol.StageIdentity{Serial: zSerial, Profile: "Z825B"},
		SettingsTimeout: 5 * time.Second,
		PollInterval:    250 * time.Millisecond,
		EnableSettle:    time.Second,
	}
}

func newTestController(t *testing.T, drv motion.Driver) *Controller {
	t.Helper()
	c := New(zConfig(), drv)
	c.sleep = func(time.Duration) {}
	return c
}

// recordingDriver captures the decimal handed to MoveTo.
type recordingDriver struct {
	*simmotion.Driver
	mu    sync.Mutex
	moves []decimal.Decimal
}

func (r *recordingDriver) Bind(serial string) (motion.Device, error) {
	dev, err := r.Driver.Bind(serial)
	if err != nil {
		return nil, err
	}
	return &recordingDevice{Device: dev, rec: r}, nil
}

type recordingDevice struct {
	motion.Device
	rec *recordingDriver
}

func (d *recordingDevice) MoveTo(p decimal.Decimal, timeout time.Duration) error {
	d.rec.mu.Lock()
	d.rec.moves = append(d.rec.moves, p)
	d.rec.mu.Unlock()
	return d.Device.MoveTo(p, timeout)
}

func TestConnect_RunsFullSequence(t *testing.T) {
	drv := simmotion.New(zSerial)
	c := newTestController(t, drv)

	var slept time.Duration
	c.sleep = func(d time.Duration) { slept = d }

	require.NoError(t, c.Connect())
	assert.Equal(t, consts.StateConnected, c.State())
	assert.True(t, c.IsConnected())
	assert.Equal(t, time.Second, slept)
	assert.Equal(t, []string{
		"discover",
		"bind:" + zSerial,
		"wait_settings:" + zSerial,
		"start_polling:" + zSerial,
		"enable:" + zSerial,
		"load_settings:" + zSerial,
	}, drv.Calls())
}

func TestConnect_RejectsDoubleInitialization(t *testing.T) {
	drv := simmotion.New(zSerial)
	c := newTestController(t, drv)
	require.NoError(t, c.Connect())

	err := c.Connect()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidState))
	assert.Equal(t, 1, drv.Binds())
	assert.Equal(t, consts.StateConnected, c.State())
}

func TestConnect_FailuresLeaveFailedAndReleaseBinding(t *testing.T) {
	cases := []struct {
		op   string
		err  error
		code errors.ErrorCode
	}{
		{simmotion.OpDiscover, stderrors.New("usb enumeration"), errors.ErrCodeConnection},
		{simmotion.OpBind, stderrors.New("in use"), errors.ErrCodeConnection},
		{simmotion.OpWaitSettings, motion.ErrTimeout, errors.ErrCodeTimeoutExceeded},
		{simmotion.OpStartPolling, stderrors.New("poll"), errors.ErrCodeConnection},
		{simmotion.OpEnable, stderrors.New("enable"), errors.ErrCodeConnection},
		{simmotion.OpLoadSettings, stderrors.New("no such profile"), errors.ErrCodeConfig},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			drv := simmotion.New(zSerial)
			drv.FailOn(tc.op, tc.err)
			c := newTestController(t, drv)

			err := c.Connect()
			require.Error(t, err)
			assert.Equal(t, tc.code, errors.CodeOf(err))
			assert.Equal(t, consts.StateFailed, c.State())
			assert.False(t, c.IsConnected())
			assert.Zero(t, drv.Bound(), "partial binding must be released")

			// Retry after the fault clears.
			drv.FailOn(tc.op, nil)
			require.NoError(t, c.Connect())
			assert.Equal(t, consts.StateConnected, c.State())
			assert.Equal(t, 1, drv.Bound())
		})
	}
}

func TestConnect_SerialNotAttached(t *testing.T) {
	drv := simmotion.New("00000000")
	c := newTestController(t, drv)

	err := c.Connect()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConnection, errors.CodeOf(err))
	assert.ErrorIs(t, err, motion.ErrNotFound)
	assert.Equal(t, consts.StateFailed, c.State())
	assert.NotContains(t, drv.Calls(), "bind:"+zSerial)
}

func TestConnect_UnavailableDriver(t *testing.T) {
	c := newTestController(t, motion.Unavailable(fmt.Errorf("kinesis not linked")))
	err := c.Connect()
	require.Error(t, err)
	assert.Equal(t, consts.StateFailed, c.State())
}

func TestConnectDisconnectConnect_NoLeak(t *testing.T) {
	drv := simmotion.New(zSerial)
	c := newTestController(t, drv)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Connect())
		assert.Equal(t, 1, drv.Bound())
		require.NoError(t, c.Disconnect())
		assert.Equal(t, consts.StateDisconnected, c.State())
		assert.Zero(t, drv.Bound())
	}
	assert.Equal(t, 3, drv.Binds())
}

func TestMotion_NotConnectedNeverContactsDriver(t *testing.T) {
	drv := simmotion.New(zSerial)
	drv.FailOn(simmotion.OpEnable, stderrors.New("enable"))

	uninit := newTestController(t, drv)
	failed := newTestController(t, drv)
	require.Error(t, failed.Connect())
	require.Equal(t, consts.StateFailed, failed.State())

	for name, c := range map[string]*Controller{"uninitialized": uninit, "failed": failed} {
		before := len(drv.Calls())

		err := c.Home(time.Second)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidState), name)

		err = c.MoveTo(12.5, time.Second)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidState), name)

		_, err = c.Position()
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidState), name)

		assert.Len(t, drv.Calls(), before, "%s: driver must not be contacted", name)
	}
}

func TestMoveTo_PassesExactDecimal(t *testing.T) {
	rec := &recordingDriver{Driver: simmotion.New(zSerial)}
	c := newTestController(t, rec)
	require.NoError(t, c.Connect())

	require.NoError(t, c.MoveTo(12.5, 0))
	require.NoError(t, c.MoveTo(0.1, 0))
	require.NoError(t, c.MoveTo(-3.0000001, 0))

	require.Len(t, rec.moves, 3)
	assert.Equal(t, "12.5", rec.moves[0].String())
	assert.Equal(t, "0.1", rec.moves[1].String())
	assert.Equal(t, "-3.0000001", rec.moves[2].String())

	pos, err := c.Position()
	require.NoError(t, err)
	assert.Equal(t, -3.0000001, pos)
}

func TestMoveTo_AfterDisconnectFails(t *testing.T) {
	drv := simmotion.New(zSerial)
	c := newTestController(t, drv)
	require.NoError(t, c.Connect())
	require.NoError(t, c.Disconnect())

	before := len(drv.Calls())
	err := c.MoveTo(12.5, time.Second)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidState))
	assert.Len(t, drv.Calls(), before)
}

func TestMoveTo_RejectsNonFinite(t *testing.T) {
	c := newTestController(t, simmotion.New(zSerial))
	require.NoError(t, c.Connect())

	for _, p := range []float64{math.NaN(), math.Inf(1)} {
		err := c.MoveTo(p, 0)
		assert.Equal(t, errors.ErrCodeInvalidArgument, errors.CodeOf(err))
	}
}

func TestHome_TimeoutClassified(t *testing.T) {
	drv := simmotion.New(zSerial)
	c := newTestController(t, drv)
	require.NoError(t, c.Connect())
	require.NoError(t, c.MoveTo(4, 0))

	drv.FailOn(simmotion.OpHome, fmt.Errorf("kcube: %w", motion.ErrTimeout))
	err := c.Home(10 * time.Millisecond)
	assert.Equal(t, errors.ErrCodeTimeoutExceeded, errors.CodeOf(err))
	assert.True(t, c.IsConnected(), "a failed home does not drop the connection")

	drv.FailOn(simmotion.OpHome, nil)
	require.NoError(t, c.Home(0))
	pos, err := c.Position()
	require.NoError(t, err)
	assert.Zero(t, pos)
}

func TestDisconnect_IdempotentFromAnyState(t *testing.T) {
	drv := simmotion.New(zSerial)
	c := newTestController(t, drv)

	assert.NoError(t, c.Disconnect())
	assert.Equal(t, consts.StateUninitialized, c.State())

	require.NoError(t, c.Connect())
	assert.NoError(t, c.Disconnect())
	assert.NoError(t, c.Disconnect())
	assert.Equal(t, consts.StateDisconnected, c.State())

	disconnects := 0
	for _, call := range drv.Calls() {
		if call == "disconnect:"+zSerial {
			disconnects++
		}
	}
	assert.Equal(t, 1, disconnects)
}

func TestDisconnect_DriverErrorStillReleases(t *testing.T) {
	drv := simmotion.New(zSerial)
	c := newTestController(t, drv)
	require.NoError(t, c.Connect())

	drv.FailOn(simmotion.OpStopPolling, stderrors.New("poll thread stuck"))
	err := c.Disconnect()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDriver, errors.CodeOf(err))
	assert.Equal(t, consts.StateDisconnected, c.State())
	assert.Zero(t, drv.Bound())
}

type panickingDriver struct{}

func (panickingDriver) Discover() ([]string, error)        { panic("native fault") }
func (panickingDriver) Bind(string) (motion.Device, error) { panic("native fault") }

func TestConnect_DriverPanicBecomesError(t *testing.T) {
	c := newTestController(t, panickingDriver{})
	var err error
	assert.NotPanics(t, func() { err = c.Connect() })
	require.Error(t, err)
	assert.Equal(t, consts.StateFailed, c.State())
}

func TestConcurrentCallsAreSerialized(t *testing.T) {
	drv := simmotion.New(zSerial)
	c := newTestController(t, drv)
	require.NoError(t, c.Connect())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.MoveTo(float64(i), 0)
			_, _ = c.Position()
		}(i)
	}
	wg.Wait()
	assert.True(t, c.IsConnected())
}

func TestConfigFor(t *testing.T) {
	cfg := protocol.DefaultConfig()
	sc, err := ConfigFor(cfg, protocol.StageRotation)
	require.NoError(t, err)
	assert.Equal(t, "27266129", sc.Identity.Serial)
	assert.Equal(t, "PRM1-Z8", sc.Identity.Profile)
	assert.Equal(t, 250*time.Millisecond, sc.PollInterval)

	_, err = ConfigFor(cfg, protocol.StageType("xaxis"))
	assert.Equal(t, errors.ErrCodeConfig, errors.CodeOf(err))
}
