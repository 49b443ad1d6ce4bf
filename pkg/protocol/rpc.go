package protocol

// ServiceName is the gorilla/rpc service the hardware methods are registered under.
const ServiceName = "Hardware"

// RPCPath is the HTTP path of the JSON-RPC endpoint.
const RPCPath = "/rpc"

// Public method names, as sent by clients in the JSON-RPC "method" field.
const (
	MethodUploadFrame      = "upload_frame"
	MethodStageConnect     = "stage_connect"
	MethodStageHome        = "stage_home"
	MethodStageGetPosition = "stage_get_position"
	MethodStageMoveTo      = "stage_move_to"
	MethodStageDisconnect  = "stage_disconnect"
	MethodStageIsConnected = "stage_is_connected"
	MethodAHKCapturePos    = "ahk_capture_position"
	MethodAHKClickAt       = "ahk_click_at"
	MethodAHKGetConfig     = "ahk_get_config"
	MethodDisplayInfo      = "display_info"
)

// MethodAliases maps public method names onto ServiceName.GoMethod.
var MethodAliases = map[string]string{
	MethodUploadFrame:      ServiceName + ".UploadFrame",
	MethodStageConnect:     ServiceName + ".StageConnect",
	MethodStageHome:        ServiceName + ".StageHome",
	MethodStageGetPosition: ServiceName + ".StageGetPosition",
	MethodStageMoveTo:      ServiceName + ".StageMoveTo",
	MethodStageDisconnect:  ServiceName + ".StageDisconnect",
	MethodStageIsConnected: ServiceName + ".StageIsConnected",
	MethodAHKCapturePos:    ServiceName + ".AHKCapturePosition",
	MethodAHKClickAt:       ServiceName + ".AHKClickAt",
	MethodAHKGetConfig:     ServiceName + ".AHKGetConfig",
	MethodDisplayInfo:      ServiceName + ".DisplayInfo",
}

// UploadFrameArgs carries a raw frame. Data is base64 on the JSON wire.
type UploadFrameArgs struct {
	Data  []byte `json:"data"`
	Shape []int  `json:"shape"`
	DType string `json:"dtype"`
}

type StageArgs struct {
	StageType StageType `json:"stage_type"`
}

// StageHomeArgs.TimeoutMs <= 0 selects the configured default.
type StageHomeArgs struct {
	StageType StageType `json:"stage_type"`
	TimeoutMs int64     `json:"timeout"`
}

type StageMoveArgs struct {
	Position  *float64  `json:"position"`
	StageType StageType `json:"stage_type"`
	TimeoutMs int64     `json:"timeout"`
}

type ClickArgs struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type NoArgs struct{}

// Point is a screen coordinate reported by the automation tool.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type DisplayInfo struct {
	Mode  string `json:"mode"`
	Shape []int  `json:"shape"`
}

// Personal.AI order the ending
