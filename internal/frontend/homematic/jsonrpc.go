package homematic

import (
	"context"
	"errors"
	"fmt"

	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/frontend/httpclient"
)

const jsonRPCVersion = "1.1"

// ErrRPC is returned for JSON-RPC level failures.
var ErrRPC = errors.New("json-rpc")

type request struct {
	Version string `json:"version"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// rpc calls the CCU JSON-RPC endpoint.
type rpc struct {
	client *httpclient.Client
	url    string
}

func (r *rpc) call(ctx context.Context, method string, params map[string]any) (document.Document, error) {
	resp, err := r.client.PostDocument(ctx, r.url, request{Version: jsonRPCVersion, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	body, ok := resp.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: response is not an object", ErrRPC, method)
	}
	if v, _ := body["version"].(string); v != jsonRPCVersion {
		return nil, fmt.Errorf("%w: %s: version is %q, want %s", ErrRPC, method, body["version"], jsonRPCVersion)
	}
	if e := body["error"]; e != nil {
		text, _ := document.Text(e)
		return nil, fmt.Errorf("%w: %s: %s", ErrRPC, method, text)
	}
	result, ok := body["result"]
	if !ok || result == nil {
		return nil, fmt.Errorf("%w: %s: neither result nor error", ErrRPC, method)
	}
	return result, nil
}
