package service

import (
	"net/http"
	"reflect"

	"github.com/gorilla/rpc/v2"
	"github.com/turtacn/Optibench/pkg/logger"
	"github.com/turtacn/Optibench/pkg/protocol"
)

// aliasCodec wraps a JSON-RPC codec so that clients may call the snake_case
// public names ("stage_move_to") as well as "Hardware.StageMoveTo".
type aliasCodec struct {
	inner rpc.Codec
}

func (c aliasCodec) NewRequest(r *http.Request) rpc.CodecRequest {
	return &aliasRequest{CodecRequest: c.inner.NewRequest(r)}
}

type aliasRequest struct {
	rpc.CodecRequest
	method string
}

func (r *aliasRequest) Method() (string, error) {
	m, err := r.CodecRequest.Method()
	if err != nil {
		return "", err
	}
	r.method = m
	if target, ok := protocol.MethodAliases[m]; ok {
		return target, nil
	}
	return m, nil
}

// ReadRequest never fails the call. Params that do not fit the argument type
// are dropped and the handler sees zero-valued arguments, which every handler
// rejects with its sentinel result.
func (r *aliasRequest) ReadRequest(args interface{}) error {
	if err := r.CodecRequest.ReadRequest(args); err != nil {
		logger.Log.Warn("RPC: params do not match method signature", "method", r.method, "err", err)
		v := reflect.ValueOf(args).Elem()
		v.Set(reflect.Zero(v.Type()))
	}
	return nil
}

// Personal.AI order the ending
