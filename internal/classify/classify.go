// Package classify decides how a fetched response body is rendered.
package classify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-json-experiment/json/jsontext"
)

// ErrMalformedBody is returned when a response declares JSON but the payload
// does not parse.
var ErrMalformedBody = errors.New("malformed response body")

const jsonMediaType = "application/json"

// IsJSON reports whether the content type declares JSON.
func IsJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), jsonMediaType)
}

// Body reads r and formats it for display. JSON bodies are parsed and
// re-serialized with two-space indentation, so numbers and string escapes
// come out in their shortest form. Anything else is returned unmodified.
func Body(contentType string, r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if !IsJSON(contentType) {
		return string(raw), nil
	}

	v, err := parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	var out bytes.Buffer
	enc := jsontext.NewEncoder(&out, jsontext.WithIndent("  "))
	if err := write(enc, v); err != nil {
		return "", fmt.Errorf("format body: %w", err)
	}
	return strings.TrimSuffix(out.String(), "\n"), nil
}

// object keeps members in first-seen order. A repeated name overwrites the
// earlier value but keeps its position.
type object struct {
	names  []string
	values map[string]any
}

func (o *object) set(name string, v any) {
	if _, ok := o.values[name]; !ok {
		o.names = append(o.names, name)
	}
	o.values[name] = v
}

var errTrailingData = errors.New("unexpected data after top-level value")

func parse(raw []byte) (any, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(raw),
		jsontext.AllowDuplicateNames(true),
		jsontext.AllowInvalidUTF8(true),
	)
	v, err := readValue(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch _, err := dec.ReadToken(); {
	case err == nil:
		return nil, errTrailingData
	case !errors.Is(err, io.EOF):
		return nil, err
	}
	return v, nil
}

func readValue(dec *jsontext.Decoder) (any, error) {
	tok, err := dec.ReadToken()
	if err != nil {
		return nil, err
	}
	switch tok.Kind() {
	case '{':
		obj := &object{values: make(map[string]any)}
		for dec.PeekKind() != '}' {
			name, err := dec.ReadToken()
			if err != nil {
				return nil, err
			}
			key := name.String()
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			obj.set(key, v)
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.PeekKind() != ']' {
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return arr, nil
	case '"':
		return tok.String(), nil
	case '0':
		return number(tok.String()), nil
	case 't', 'f':
		return tok.Bool(), nil
	default:
		return nil, nil
	}
}

// number returns the float value of a JSON number literal, or nil when it
// overflows to infinity and so renders as null.
func number(lit string) any {
	f, _ := strconv.ParseFloat(lit, 64)
	if math.IsInf(f, 0) {
		return nil
	}
	if f == 0 {
		return 0.0
	}
	return f
}

func write(enc *jsontext.Encoder, v any) error {
	switch v := v.(type) {
	case *object:
		if err := enc.WriteToken(jsontext.BeginObject); err != nil {
			return err
		}
		for _, name := range v.names {
			if err := enc.WriteToken(jsontext.String(name)); err != nil {
				return err
			}
			if err := write(enc, v.values[name]); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.EndObject)
	case []any:
		if err := enc.WriteToken(jsontext.BeginArray); err != nil {
			return err
		}
		for _, elem := range v {
			if err := write(enc, elem); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.EndArray)
	case string:
		return enc.WriteToken(jsontext.String(v))
	case float64:
		return enc.WriteToken(jsontext.Float(v))
	case bool:
		return enc.WriteToken(jsontext.Bool(v))
	default:
		return enc.WriteToken(jsontext.Null)
	}
}
