package analyses

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"unicode/utf8"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindDomain
	kindInt
)

type field struct {
	Name     string
	Kind     fieldKind
	Required bool
	MaxLen   int
	Min, Max int
	Default  int
}

func textField(name string, required bool, maxLen int) field {
	return field{Name: name, Kind: kindText, Required: required, MaxLen: maxLen}
}

func domainField(name string, required bool) field {
	return field{Name: name, Kind: kindDomain, Required: required, MaxLen: 253}
}

func intField(name string, min, max, def int) field {
	return field{Name: name, Kind: kindInt, Min: min, Max: max, Default: def}
}

// Input is a validated, normalized request body.
type Input map[string]any

func (in Input) str(name string) string {
	s, _ := in[name].(string)
	return s
}

func (in Input) num(name string) int {
	n, _ := in[name].(int)
	return n
}

// RequestDefaults fill optional localization fields the caller left out.
type RequestDefaults struct {
	Language string
	Location string
}

// validateInput checks body against the type's fields. The first failing
// field is reported.
func validateInput(spec typeSpec, body []byte) (Input, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ValidationError{Field: "body", Issue: "must be a JSON object"}
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &ValidationError{Field: "body", Issue: "must be a JSON object"}
	}

	in := Input{}
	for _, f := range spec.Fields {
		value, present := raw[f.Name]
		if present && bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			present = false
		}
		switch f.Kind {
		case kindText, kindDomain:
			s, err := decodeText(f, value, present)
			if err != nil {
				return nil, err
			}
			if s != "" {
				in[f.Name] = s
			}
		case kindInt:
			n, err := decodeInt(f, value, present)
			if err != nil {
				return nil, err
			}
			in[f.Name] = n
		}
	}
	return in, nil
}

func decodeText(f field, value json.RawMessage, present bool) (string, error) {
	var s string
	if present {
		if err := json.Unmarshal(value, &s); err != nil {
			return "", &ValidationError{Field: f.Name, Issue: "must be a string"}
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		if f.Required {
			return "", &ValidationError{Field: f.Name, Issue: "is required"}
		}
		return "", nil
	}
	if f.MaxLen > 0 && utf8.RuneCountInString(s) > f.MaxLen {
		return "", &ValidationError{Field: f.Name, Issue: fmt.Sprintf("must be at most %d characters", f.MaxLen)}
	}
	if f.Kind == kindDomain {
		host, ok := normalizeDomain(s)
		if !ok {
			return "", &ValidationError{Field: f.Name, Issue: "must be a domain name"}
		}
		s = host
	}
	return s, nil
}

func decodeInt(f field, value json.RawMessage, present bool) (int, error) {
	if !present {
		return f.Default, nil
	}
	var n float64
	if err := json.Unmarshal(value, &n); err != nil || n != math.Trunc(n) {
		return 0, &ValidationError{Field: f.Name, Issue: "must be an integer"}
	}
	if int(n) < f.Min || int(n) > f.Max {
		return 0, &ValidationError{Field: f.Name, Issue: fmt.Sprintf("must be between %d and %d", f.Min, f.Max)}
	}
	return int(n), nil
}

// normalizeDomain accepts "example.com", "https://example.com/path" and
// returns the lower-cased host.
func normalizeDomain(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" || !strings.Contains(host, ".") || strings.ContainsAny(host, " _") {
		return "", false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return "", false
		}
	}
	return host, true
}

func localizedPayload(inputField, providerField string) func(Input, RequestDefaults) map[string]any {
	return func(in Input, d RequestDefaults) map[string]any {
		return map[string]any{
			providerField:   in.str(inputField),
			"location_name": firstNonEmpty(in.str("location"), d.Location),
			"language_code": firstNonEmpty(in.str("language"), d.Language),
		}
	}
}

func keywordDataPayload(in Input, d RequestDefaults) map[string]any {
	return map[string]any{
		"keywords":      []string{in.str("keyword")},
		"location_name": firstNonEmpty(in.str("location"), d.Location),
		"language_code": firstNonEmpty(in.str("language"), d.Language),
	}
}

func shoppingPayload(in Input, d RequestDefaults) map[string]any {
	return map[string]any{
		"keyword":       in.str("keyword"),
		"location_name": firstNonEmpty(in.str("location"), d.Location),
		"language_code": firstNonEmpty(in.str("language"), d.Language),
		"depth":         in.num("depth"),
	}
}

func onPagePayload(in Input, _ RequestDefaults) map[string]any {
	return map[string]any{
		"target":          in.str("target"),
		"max_crawl_pages": in.num("max_crawl_pages"),
	}
}

func trafficPayload(in Input, _ RequestDefaults) map[string]any {
	return map[string]any{
		"target": in.str("target"),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
