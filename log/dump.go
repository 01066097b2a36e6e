package log

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SerializationFormat controls how Dump renders values.
type SerializationFormat string

// Supported SerializationFormat values.
const (
	SerializationJSON   SerializationFormat = "Json"
	SerializationString SerializationFormat = "String"
)

// Serialize renders value in the given format.
//
// Unknown formats fall back to JSON. A value that can't be marshaled as JSON
// is rendered with %+v.
func Serialize(value interface{}, format SerializationFormat) string {
	if value == nil {
		return ""
	}
	if strings.EqualFold(string(format), string(SerializationString)) {
		return fmt.Sprintf("%+v", value)
	}
	if s, ok := value.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", value)
	}
	return string(data)
}

// Dump logs msg together with a rendering of value under the "value" key.
func Dump(ctx context.Context, l Logger, level Level, msg string, value interface{}, format SerializationFormat) {
	OrNop(l).Log(ctx, level, msg, "value", Serialize(value, format))
}
