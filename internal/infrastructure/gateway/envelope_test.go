package gateway

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		shape Shape
		want  string
	}{
		{"batch json", `[{"result":{"data":{"json":{"success":true}}}}]`, ShapeBatchJSON, `{"success":true}`},
		{"batch json with meta", `[{"result":{"data":{"json":{"n":1},"meta":{"values":{}}}}}]`, ShapeBatchJSON, `{"n":1}`},
		{"batch data", `[{"result":{"data":{"success":true}}}]`, ShapeBatchData, `{"success":true}`},
		{"bare json", `{"result":{"data":{"json":[1,2]}}}`, ShapeBareJSON, `[1,2]`},
		{"bare data", `{"result":{"data":{"products":[]}}}`, ShapeBareData, `{"products":[]}`},
		{"json key with other siblings is data", `{"result":{"data":{"json":1,"other":2}}}`, ShapeBareData, `{"json":1,"other":2}`},
		{"surrounding whitespace", "\n  [{\"result\":{\"data\":{\"json\":true}}}]  \n", ShapeBatchJSON, `true`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.shape, env.Shape)
			assert.JSONEq(t, tt.want, string(env.Payload))
		})
	}
}

func TestDecodeEnvelope_FailsClosed(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"empty", ``, "empty body"},
		{"scalar", `"ok"`, "not a JSON object or array"},
		{"empty batch", `[]`, "exactly one"},
		{"two results", `[{"result":{"data":1}},{"result":{"data":2}}]`, "exactly one"},
		{"no result", `{"foo":1}`, "missing result.data"},
		{"null data", `{"result":{"data":null}}`, "missing result.data"},
		{"null json payload", `[{"result":{"data":{"json":null}}}]`, "null payload"},
		{"truncated", `[{"result":`, "malformed batch"},
		{"html", `<html>502</html>`, "not a JSON object or array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnrecognizedEnvelope)

			var envErr *EnvelopeError
			require.True(t, errors.As(err, &envErr))
			assert.Contains(t, envErr.Reason, tt.reason)
		})
	}
}

func TestDecodeEnvelope_RemoteError(t *testing.T) {
	t.Run("batched json error with data code", func(t *testing.T) {
		body := `[{"error":{"json":{"message":"Token inválido","code":-32001,"data":{"code":"UNAUTHORIZED","httpStatus":401}}}}]`
		_, err := DecodeEnvelope([]byte(body))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRemote)

		var remote *RemoteError
		require.True(t, errors.As(err, &remote))
		assert.Equal(t, "UNAUTHORIZED", remote.Code)
		assert.Equal(t, "Token inválido", remote.Message)
		assert.Equal(t, 401, remote.HTTPStatus)
	})

	t.Run("bare error with numeric code", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte(`{"error":{"message":"boom","code":-32603}}`))
		var remote *RemoteError
		require.True(t, errors.As(err, &remote))
		assert.Equal(t, "-32603", remote.Code)
	})

	t.Run("empty message", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte(`{"error":{"json":{}}}`))
		var remote *RemoteError
		require.True(t, errors.As(err, &remote))
		assert.Equal(t, "error sin mensaje", remote.Message)
	})

	t.Run("malformed error member", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte(`{"error":"nope"}`))
		assert.ErrorIs(t, err, ErrUnrecognizedEnvelope)
	})
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet([]byte("short")))
	long := strings.Repeat("x", 300)
	assert.Len(t, snippet([]byte(long)), 203)
}

func TestShape_String(t *testing.T) {
	assert.Equal(t, "batch-json", ShapeBatchJSON.String())
	assert.Equal(t, "bare-data", ShapeBareData.String())
	assert.Equal(t, "unknown", ShapeUnknown.String())
}
