package hashes

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cuikangjie/redis-cli/pkg/protocol"
)

// ErrUnexpectedReply is returned when a dispatcher hands back a reply whose
// shape does not fit the command, e.g. an array for HLEN.
var ErrUnexpectedReply = errors.New("hashes: unexpected reply")

func unexpected(command string, raw interface{}) error {
	return fmt.Errorf("%w: %s returned %T", ErrUnexpectedReply, command, raw)
}

func toList(command string, raw interface{}) ([]interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return []interface{}{}, nil
	case []interface{}:
		return v, nil
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	default:
		return nil, unexpected(command, raw)
	}
}

func toStrings(command string, raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case nil, []interface{}:
		items, _ := toList(command, raw)
		out := make([]string, len(items))
		for i, item := range items {
			s, ok := asString(item)
			if !ok {
				return nil, unexpected(command, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, unexpected(command, raw)
	}
}

// toFieldMap accepts the map reply of RESP3-speaking dispatchers as well as
// the flat field, value, field, value... array of RESP2.
func toFieldMap(command string, raw interface{}) (map[string]interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for field, val := range v {
			out[field] = val
		}
		return out, nil
	case map[string]string:
		out := make(map[string]interface{}, len(v))
		for field, val := range v {
			out[field] = val
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for field, val := range v {
			name, ok := asString(field)
			if !ok {
				return nil, unexpected(command, field)
			}
			out[name] = val
		}
		return out, nil
	case []interface{}:
		if len(v)%2 != 0 {
			return nil, fmt.Errorf("%w: %s returned %d elements", ErrUnexpectedReply, command, len(v))
		}
		out := make(map[string]interface{}, len(v)/2)
		for i := 0; i < len(v); i += 2 {
			name, ok := asString(v[i])
			if !ok {
				return nil, unexpected(command, v[i])
			}
			out[name] = v[i+1]
		}
		return out, nil
	default:
		return nil, unexpected(command, raw)
	}
}

func toInt(command string, raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, unexpected(command, raw)
		}
		return n, nil
	default:
		return 0, unexpected(command, raw)
	}
}

func toBool(command string, raw interface{}) (bool, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	n, err := toInt(command, raw)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

func toFloat(command string, raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case string, []byte:
		s, _ := asString(v)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, unexpected(command, raw)
		}
		return f, nil
	default:
		return 0, unexpected(command, raw)
	}
}

// toText keeps text replies as sent. Numeric replies (RESP3 doubles from
// some dispatchers) are formatted the way arguments are.
func toText(command string, raw interface{}) (string, error) {
	switch v := raw.(type) {
	case float64, int64:
		return protocol.FormatArg(v), nil
	default:
		return toStatus(command, raw)
	}
}

func toStatus(command string, raw interface{}) (string, error) {
	s, ok := asString(raw)
	if !ok {
		return "", unexpected(command, raw)
	}
	return s, nil
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}
