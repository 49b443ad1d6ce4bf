// Package client is a typed JSON-RPC client for the Hardware service.
package client

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/turtacn/Optibench/pkg/errors"
	"github.com/turtacn/Optibench/pkg/protocol"
)

// Blocking hardware calls may take a minute or more.
const defaultTimeout = 5 * time.Minute

type Client struct {
	endpoint string
	http     *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the service at addr, given as "host:port" or as a
// full URL. A URL without a path gets protocol.RPCPath.
func New(addr string, opts ...Option) *Client {
	endpoint := addr
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	if rest := endpoint[strings.Index(endpoint, "://")+3:]; !strings.Contains(rest, "/") {
		endpoint += protocol.RPCPath
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Endpoint() string { return c.endpoint }

// Call invokes method once. Calls are never retried: a hardware operation
// that timed out on the wire may still have run on the host.
func (c *Client) Call(ctx context.Context, method string, params, reply interface{}) error {
	body, err := json2.EncodeClientRequest(method, params)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidArgument, method, "cannot encode params", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.New(errors.ErrCodeInvalidArgument, method, "cannot build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.New(errors.ErrCodeConnection, method, "request failed", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New(errors.ErrCodeConnection, method, fmt.Sprintf("received status code %d", resp.StatusCode), nil)
	}
	if err := json2.DecodeClientResponse(resp.Body, reply); err != nil {
		if stderrors.Is(err, json2.ErrNullResult) {
			return err
		}
		return errors.New(errors.ErrCodeDecode, method, "bad response", err)
	}
	return nil
}

func (c *Client) callBool(ctx context.Context, method string, params interface{}) (bool, error) {
	var ok bool
	err := c.Call(ctx, method, params, &ok)
	return ok, err
}

// callNullable treats a null result as a nil value rather than an error.
func callNullable[T any](ctx context.Context, c *Client, method string, params interface{}) (*T, error) {
	var v T
	err := c.Call(ctx, method, params, &v)
	if stderrors.Is(err, json2.ErrNullResult) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func millis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return d.Milliseconds()
}

func (c *Client) UploadFrame(ctx context.Context, data []byte, shape []int, dtype string) (bool, error) {
	return c.callBool(ctx, protocol.MethodUploadFrame, protocol.UploadFrameArgs{Data: data, Shape: shape, DType: dtype})
}

func (c *Client) StageConnect(ctx context.Context, t protocol.StageType) (bool, error) {
	return c.callBool(ctx, protocol.MethodStageConnect, protocol.StageArgs{StageType: t})
}

// StageHome with timeout <= 0 leaves the bound to the host's default.
func (c *Client) StageHome(ctx context.Context, t protocol.StageType, timeout time.Duration) (bool, error) {
	return c.callBool(ctx, protocol.MethodStageHome, protocol.StageHomeArgs{StageType: t, TimeoutMs: millis(timeout)})
}

// StageGetPosition returns nil when the host could not read a position.
func (c *Client) StageGetPosition(ctx context.Context, t protocol.StageType) (*float64, error) {
	return callNullable[float64](ctx, c, protocol.MethodStageGetPosition, protocol.StageArgs{StageType: t})
}

func (c *Client) StageMoveTo(ctx context.Context, t protocol.StageType, position float64, timeout time.Duration) (bool, error) {
	return c.callBool(ctx, protocol.MethodStageMoveTo, protocol.StageMoveArgs{
		Position:  &position,
		StageType: t,
		TimeoutMs: millis(timeout),
	})
}

func (c *Client) StageDisconnect(ctx context.Context, t protocol.StageType) (bool, error) {
	return c.callBool(ctx, protocol.MethodStageDisconnect, protocol.StageArgs{StageType: t})
}

func (c *Client) StageIsConnected(ctx context.Context, t protocol.StageType) (bool, error) {
	return c.callBool(ctx, protocol.MethodStageIsConnected, protocol.StageArgs{StageType: t})
}

// AHKCapturePosition returns nil when the capture produced no position.
func (c *Client) AHKCapturePosition(ctx context.Context) (*protocol.Point, error) {
	return callNullable[protocol.Point](ctx, c, protocol.MethodAHKCapturePos, protocol.NoArgs{})
}

func (c *Client) AHKClickAt(ctx context.Context, x, y float64) (bool, error) {
	return c.callBool(ctx, protocol.MethodAHKClickAt, protocol.ClickArgs{X: &x, Y: &y})
}

func (c *Client) AHKGetConfig(ctx context.Context) (map[string]string, error) {
	var m map[string]string
	err := c.Call(ctx, protocol.MethodAHKGetConfig, protocol.NoArgs{}, &m)
	return m, err
}

func (c *Client) DisplayInfo(ctx context.Context) (protocol.DisplayInfo, error) {
	var info protocol.DisplayInfo
	err := c.Call(ctx, protocol.MethodDisplayInfo, protocol.NoArgs{}, &info)
	return info, err
}

// Personal.AI order the ending
