package analyses

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// The flex types decode provider JSON leniently: a missing, null or
// mistyped value yields the zero value instead of an error.

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	*f = ""
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexString(strconv.FormatBool(b))
	}
	return nil
}

func (f flexString) String() string {
	return strings.TrimSpace(string(f))
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	*f = 0
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = flexFloat(v)
		}
	}
	return nil
}

type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var v flexFloat
	_ = v.UnmarshalJSON(data)
	*f = flexInt(int64(v))
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	*f = false
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			*f = flexBool(v)
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = n != 0
	}
	return nil
}

// flexObject decodes T only when the value is a JSON object.
type flexObject[T any] struct {
	V T
}

func (f *flexObject[T]) UnmarshalJSON(data []byte) error {
	var zero T
	f.V = zero
	if !isJSONObject(data) {
		return nil
	}
	if err := json.Unmarshal(data, &f.V); err != nil {
		f.V = zero
	}
	return nil
}

// flexList decodes a JSON array element-wise. Elements that cannot be decoded
// into T are dropped; anything other than an array yields an empty list.
type flexList[T any] []T

func (f *flexList[T]) UnmarshalJSON(data []byte) error {
	*f = flexList[T]{}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make(flexList[T], 0, len(raw))
	for _, item := range raw {
		var v T
		if err := decodeElement(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*f = out
	return nil
}

func decodeElement(data json.RawMessage, v any) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return errNullElement
	}
	return json.Unmarshal(data, v)
}

var errNullElement = errors.New("null element")

// decodeLenient decodes an object into v and leaves v zero for anything else.
func decodeLenient(data json.RawMessage, v any) bool {
	if !isJSONObject(data) {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func isJSONObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func stringsOf(list flexList[flexString]) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if v := s.String(); v != "" {
			out = append(out, v)
		}
	}
	return out
}
