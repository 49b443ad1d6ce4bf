package consts

import "time"

// ConnectionState is the lifecycle state of a device binding (stage or display).
type ConnectionState string

const (
	StateUninitialized ConnectionState = "UNINITIALIZED"
	StateConnecting    ConnectionState = "CONNECTING"
	StateConnected     ConnectionState = "CONNECTED"
	StateDisconnected  ConnectionState = "DISCONNECTED"
	StateFailed        ConnectionState = "FAILED"
)

// AllConnectionStates lists every ConnectionState, in lifecycle order.
var AllConnectionStates = []ConnectionState{
	StateUninitialized, StateConnecting, StateConnected, StateDisconnected, StateFailed,
}

// ServiceState is the lifecycle state of the host process itself.
type ServiceState string

const (
	ServicePending  ServiceState = "PENDING"
	ServiceStarting ServiceState = "STARTING"
	ServiceRunning  ServiceState = "RUNNING"
	ServiceDraining ServiceState = "DRAINING" // No new dispatches, in-flight calls finishing
	ServiceStopped  ServiceState = "STOPPED"
	ServiceFailed   ServiceState = "FAILED"
)

// DisplayMode is fixed when the display controller is constructed.
type DisplayMode string

const (
	DisplayConnected DisplayMode = "connected"
	DisplaySimulated DisplayMode = "simulated"
)

// Host defaults
const (
	DefaultListenAddr    = "127.0.0.1:18861"
	DefaultShutdownGrace = 5 * time.Second
	DefaultConfigFile    = "optibench.yaml"
	EnvPrefix            = "OPTIBENCH_"
)

// Display defaults
const (
	DefaultDisplayDriver = "meadowlark"
	DefaultDisplayHeight = 1152
	DefaultDisplayWidth  = 1920
	DefaultSLMSDKPath    = `C:\Program Files\Meadowlark Optics\Blink OverDrive Plus`
	DefaultSLMLUTPath    = `C:\Program Files\Meadowlark Optics\SDK\slm5691_at635.LUT`
)

// Motion defaults
const (
	DefaultMotionDriver    = "kinesis"
	DefaultSettingsTimeout = 5 * time.Second
	DefaultPollInterval    = 250 * time.Millisecond
	DefaultEnableSettle    = 1 * time.Second
	DefaultHomeTimeout     = 60 * time.Second
	DefaultMoveTimeout     = 60 * time.Second
)

// Personal.AI order the ending
