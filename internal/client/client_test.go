package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/Optibench/pkg/errors"
	"github.com/turtacn/Optibench/pkg/protocol"
)

func TestNew_Endpoint(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:18861":          "http://127.0.0.1:18861/rpc",
		"http://localhost:18861":   "http://localhost:18861/rpc",
		"http://localhost:1/other": "http://localhost:1/other",
	}
	for in, want := range cases {
		assert.Equal(t, want, New(in).Endpoint(), in)
	}
}

func TestCall_Non2xxIsConnectionError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL).StageConnect(context.Background(), protocol.StageZAxis)
	assert.Equal(t, errors.ErrCodeConnection, errors.CodeOf(err))
}

func TestCall_ServerUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url).DisplayInfo(context.Background())
	assert.Equal(t, errors.ErrCodeConnection, errors.CodeOf(err))
}

func TestCall_RequestShapeAndNullResult(t *testing.T) {
	var got struct {
		Method string                 `json:"method"`
		Params protocol.StageMoveArgs `json:"params"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":null,"id":1}`))
	}))
	defer ts.Close()

	c := New(ts.URL)
	pos, err := c.StageGetPosition(context.Background(), protocol.StageRotation)
	require.NoError(t, err)
	assert.Nil(t, pos)

	_, _ = c.StageMoveTo(context.Background(), protocol.StageZAxis, 12.5, 1500*time.Millisecond)
	assert.Equal(t, protocol.MethodStageMoveTo, got.Method)
	require.NotNil(t, got.Params.Position)
	assert.Equal(t, 12.5, *got.Params.Position)
	assert.Equal(t, protocol.StageZAxis, got.Params.StageType)
	assert.EqualValues(t, 1500, got.Params.TimeoutMs)
}
