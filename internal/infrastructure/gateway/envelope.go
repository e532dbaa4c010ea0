package gateway

import (
	"bytes"
	"encoding/json"
)

// Shape identifies which envelope layout a response used
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeBatchJSON is [{"result":{"data":{"json":X}}}]
	ShapeBatchJSON
	// ShapeBatchData is [{"result":{"data":X}}]
	ShapeBatchData
	// ShapeBareJSON is {"result":{"data":{"json":X}}}
	ShapeBareJSON
	// ShapeBareData is {"result":{"data":X}}
	ShapeBareData
)

func (s Shape) String() string {
	switch s {
	case ShapeBatchJSON:
		return "batch-json"
	case ShapeBatchData:
		return "batch-data"
	case ShapeBareJSON:
		return "bare-json"
	case ShapeBareData:
		return "bare-data"
	default:
		return "unknown"
	}
}

// Envelope is a decoded response: the shape that matched and the flat payload
type Envelope struct {
	Shape   Shape
	Payload json.RawMessage
}

type rpcItem struct {
	Result *struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	Error json.RawMessage `json:"error"`
}

type rpcErrorBody struct {
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code"`
	Data    *struct {
		Code       string `json:"code"`
		HTTPStatus int    `json:"httpStatus"`
	} `json:"data"`
}

// DecodeEnvelope normalizes a response body to its payload. The shapes are
// tried in order batch-json, batch-data, bare-json, bare-data. A batch must
// hold exactly one element. An error member yields *RemoteError; anything
// else that does not match, including a null payload, yields *EnvelopeError.
func DecodeEnvelope(body []byte) (Envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Envelope{}, &EnvelopeError{Reason: "empty body"}
	}

	switch body[0] {
	case '[':
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			return Envelope{}, &EnvelopeError{Reason: "malformed batch: " + err.Error(), Snippet: snippet(body)}
		}
		if len(batch) != 1 {
			return Envelope{}, &EnvelopeError{Reason: "batch must hold exactly one result", Snippet: snippet(body)}
		}
		return decodeItem(batch[0], ShapeBatchJSON, ShapeBatchData)
	case '{':
		return decodeItem(body, ShapeBareJSON, ShapeBareData)
	default:
		return Envelope{}, &EnvelopeError{Reason: "body is not a JSON object or array", Snippet: snippet(body)}
	}
}

func decodeItem(raw json.RawMessage, jsonShape, dataShape Shape) (Envelope, error) {
	var item rpcItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return Envelope{}, &EnvelopeError{Reason: "malformed result: " + err.Error(), Snippet: snippet(raw)}
	}
	if !isNull(item.Error) {
		return Envelope{}, decodeRemoteError(item.Error)
	}
	if item.Result == nil || isNull(item.Result.Data) {
		return Envelope{}, &EnvelopeError{Reason: "missing result.data", Snippet: snippet(raw)}
	}

	if payload, ok := unwrapJSON(item.Result.Data); ok {
		if isNull(payload) {
			return Envelope{}, &EnvelopeError{Reason: "null payload", Snippet: snippet(raw)}
		}
		return Envelope{Shape: jsonShape, Payload: payload}, nil
	}
	return Envelope{Shape: dataShape, Payload: item.Result.Data}, nil
}

// unwrapJSON recognizes {"json":X} with an optional "meta" sibling
func unwrapJSON(data json.RawMessage) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	payload, ok := fields["json"]
	if !ok {
		return nil, false
	}
	for key := range fields {
		if key != "json" && key != "meta" {
			return nil, false
		}
	}
	return payload, true
}

func decodeRemoteError(raw json.RawMessage) error {
	body := raw
	if inner, ok := unwrapJSON(raw); ok {
		body = inner
	}

	var e rpcErrorBody
	if err := json.Unmarshal(body, &e); err != nil {
		return &EnvelopeError{Reason: "malformed error member", Snippet: snippet(raw)}
	}

	remote := &RemoteError{Message: e.Message, Code: codeString(e.Code)}
	if e.Data != nil {
		if e.Data.Code != "" {
			remote.Code = e.Data.Code
		}
		remote.HTTPStatus = e.Data.HTTPStatus
	}
	if remote.Message == "" {
		remote.Message = "error sin mensaje"
	}
	return remote
}

func codeString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
