package projector

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// object is a decoded JSON object with lenient typed getters. Values of
// the wrong type read as absent.
type object map[string]interface{}

func decodeObject(raw json.RawMessage) (object, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false
	}
	return object(m), true
}

func (o object) child(key string) object {
	if m, ok := o[key].(map[string]interface{}); ok {
		return object(m)
	}
	return nil
}

func (o object) list(key string) []interface{} {
	l, _ := o[key].([]interface{})
	return l
}

func (o object) has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o object) str(key string) *string {
	switch v := o[key].(type) {
	case string:
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	}
	return nil
}

func (o object) number(key string) *float64 {
	switch v := o[key].(type) {
	case float64:
		return &v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return &f
		}
	}
	return nil
}

func (o object) integer(key string) *int {
	f := o.number(key)
	if f == nil || *f != math.Trunc(*f) {
		return nil
	}
	i := int(*f)
	return &i
}
