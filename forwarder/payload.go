package forwarder

import (
	"fmt"
	"reflect"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// Format names the input shape recognised by Detect.
type Format string

const (
	// FormatWrapped is a mapping whose unwrap key holds the evaluation data,
	// e.g. {"arg1": {"result0": {...}}}.
	FormatWrapped Format = "wrapped"
	// FormatRaw is any other input; it is forwarded as-is.
	FormatRaw Format = "raw"
)

// DefaultUnwrapKey is the wrapper key used by workflow callers.
const DefaultUnwrapKey = "arg1"

// DefaultPreviewLimit is the number of characters of the encoded payload
// written to the diagnostic log.
const DefaultPreviewLimit = 100

// Detect selects the payload to send. When input is a map with string keys
// holding key, the value under key is returned with FormatWrapped; otherwise
// input itself is returned with FormatRaw. An empty key disables unwrapping.
// Only presence of the key is checked: a nil value under key is still unwrapped.
func Detect(input any, key string) (any, Format) {
	if key == "" {
		return input, FormatRaw
	}
	if m, ok := input.(map[string]any); ok {
		if inner, found := m[key]; found {
			return inner, FormatWrapped
		}
		return input, FormatRaw
	}

	// типизированные map, например map[string]string или map[Name]Score
	v := reflect.ValueOf(input)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return input, FormatRaw
	}
	inner := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
	if !inner.IsValid() {
		return input, FormatRaw
	}
	return inner.Interface(), FormatWrapped
}

// Preview renders payload as JSON cut to limit characters, with "..."
// appended when cut. Encoding failures are rendered inline.
func Preview(payload any, limit int) string {
	data, err := encode(payload)
	if err != nil {
		return fmt.Sprintf("<unencodable payload: %v>", err)
	}
	if limit <= 0 || utf8.RuneCount(data) <= limit {
		return string(data)
	}

	cut, n := 0, 0
	for cut < len(data) && n < limit {
		_, size := utf8.DecodeRune(data[cut:])
		cut += size
		n++
	}
	return string(data[:cut]) + "..."
}

// encode serialises payload with sorted map keys, so equal inputs always
// produce byte-identical request bodies.
func encode(payload any) (body []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while encoding payload: %v", r)
		}
	}()
	return sonic.ConfigStd.Marshal(payload)
}

func decode(data []byte) (any, error) {
	var v any
	if err := sonic.ConfigStd.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
