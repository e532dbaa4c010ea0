package devserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// JSON-RPC style error codes carried next to the HTTP status
var rpcCodes = map[string]int{
	"BAD_REQUEST":           -32600,
	"UNAUTHORIZED":          -32001,
	"FORBIDDEN":             -32003,
	"NOT_FOUND":             -32004,
	"METHOD_NOT_SUPPORTED":  -32005,
	"INTERNAL_SERVER_ERROR": -32603,
}

// rpcError is a procedure failure rendered as an error member
type rpcError struct {
	Status  int
	Code    string
	Message string
}

func (e *rpcError) Error() string {
	return e.Code + ": " + e.Message
}

func badRequest(msg string) *rpcError {
	return &rpcError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: msg}
}

func unauthorized(msg string) *rpcError {
	return &rpcError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: msg}
}

// call is one decoded procedure invocation
type call struct {
	batch bool
	input json.RawMessage
}

// decodeInput reads the procedure input. Queries carry it in the input
// query parameter, mutations in the body. Batched calls wrap it as
// {"0":{"json":X}}, single calls as {"json":X}.
func decodeInput(c *gin.Context) (call, error) {
	in := call{batch: c.Query("batch") == "1"}

	var raw []byte
	if c.Request.Method == http.MethodGet {
		raw = []byte(c.Query("input"))
	} else {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return in, &rpcError{Status: http.StatusRequestEntityTooLarge, Code: "PAYLOAD_TOO_LARGE", Message: "Request body exceeds maximum allowed size"}
			}
			return in, badRequest("unreadable body")
		}
		raw = b
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return in, nil
	}

	type wrapped struct {
		JSON json.RawMessage `json:"json"`
	}
	if in.batch {
		var batch map[string]wrapped
		if err := json.Unmarshal(raw, &batch); err != nil {
			return in, badRequest("malformed batch input")
		}
		in.input = batch["0"].JSON
		return in, nil
	}
	var single wrapped
	if err := json.Unmarshal(raw, &single); err != nil {
		return in, badRequest("malformed input")
	}
	in.input = single.JSON
	return in, nil
}

// bind decodes the call input into dst. A missing input leaves dst untouched.
func (in call) bind(dst any) error {
	if len(in.input) == 0 || string(in.input) == "null" {
		return nil
	}
	if err := json.Unmarshal(in.input, dst); err != nil {
		return badRequest("input does not match the procedure: " + err.Error())
	}
	return nil
}

func writeResult(c *gin.Context, in call, payload any) {
	item := gin.H{"result": gin.H{"data": gin.H{"json": payload}}}
	if in.batch {
		c.JSON(http.StatusOK, []gin.H{item})
		return
	}
	c.JSON(http.StatusOK, item)
}

func writeError(c *gin.Context, in call, proc string, e *rpcError) {
	code, ok := rpcCodes[e.Code]
	if !ok {
		code = rpcCodes["INTERNAL_SERVER_ERROR"]
	}
	item := gin.H{"error": gin.H{"json": gin.H{
		"message": e.Message,
		"code":    code,
		"data": gin.H{
			"code":       e.Code,
			"httpStatus": e.Status,
			"path":       proc,
		},
	}}}
	if in.batch {
		c.AbortWithStatusJSON(e.Status, []gin.H{item})
		return
	}
	c.AbortWithStatusJSON(e.Status, item)
}
