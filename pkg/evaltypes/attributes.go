package evaltypes

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AttributeKind tags which field of an AttributeValue is populated.
type AttributeKind int

// Attribute value kinds.
const (
	AttributeString AttributeKind = iota
	AttributeBool
	AttributeInt
	AttributeDouble
	AttributeArray
	AttributeMap
)

// AttributeValue is a recursive tagged value attached to data points and resources.
type AttributeValue struct {
	Kind   AttributeKind
	Str    string
	Bool   bool
	Int    int64
	Double float64
	Array  []AttributeValue
	Map    map[string]AttributeValue
}

// StringValue builds a string attribute.
func StringValue(s string) AttributeValue {
	return AttributeValue{Kind: AttributeString, Str: s}
}

// BoolValue builds a bool attribute.
func BoolValue(b bool) AttributeValue {
	return AttributeValue{Kind: AttributeBool, Bool: b}
}

// IntValue builds an integer attribute.
func IntValue(i int64) AttributeValue {
	return AttributeValue{Kind: AttributeInt, Int: i}
}

// DoubleValue builds a floating point attribute.
func DoubleValue(f float64) AttributeValue {
	return AttributeValue{Kind: AttributeDouble, Double: f}
}

// ArrayValue builds an array attribute.
func ArrayValue(values ...AttributeValue) AttributeValue {
	return AttributeValue{Kind: AttributeArray, Array: values}
}

// MapValue builds a key/value list attribute.
func MapValue(values map[string]AttributeValue) AttributeValue {
	return AttributeValue{Kind: AttributeMap, Map: values}
}

// AsString returns the string payload if the value is a string.
func (v AttributeValue) AsString() (string, bool) {
	if v.Kind != AttributeString {
		return "", false
	}
	return v.Str, true
}

// AsBool returns the bool payload if the value is a bool.
func (v AttributeValue) AsBool() (bool, bool) {
	if v.Kind != AttributeBool {
		return false, false
	}
	return v.Bool, true
}

// String renders the value for logs and reports.
func (v AttributeValue) String() string {
	switch v.Kind {
	case AttributeString:
		return v.Str
	case AttributeBool:
		return strconv.FormatBool(v.Bool)
	case AttributeInt:
		return strconv.FormatInt(v.Int, 10)
	case AttributeDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	case AttributeArray:
		parts := make([]string, len(v.Array))
		for i, item := range v.Array {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case AttributeMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%s", k, v.Map[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}

// Attributes maps trimmed attribute keys to values.
type Attributes map[string]AttributeValue
