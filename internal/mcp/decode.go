package mcp

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/soundbluemusic/dictgen/internal/errors"
)

// decode copies the tool arguments into T. Unknown argument names and values
// of the wrong JSON type are configuration errors naming the argument.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidConfig("arguments", err.Error())
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return result, errors.NewInvalidConfig(typeErr.Field, "expected "+typeErr.Type.String()+", got "+typeErr.Value)
		}
		// encoding/json reports unknown fields as `json: unknown field "name"`.
		if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return result, errors.NewInvalidConfig(strings.Trim(name, `"`), "unknown argument")
		}
		return result, errors.NewInvalidConfig("arguments", err.Error())
	}
	return result, nil
}
