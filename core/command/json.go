package command

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// MarshalJSON renders the flat wire shape
// {"type": ..., "requestId"?: ..., <field>: <value>...}.
func (c Command) MarshalJSON() ([]byte, error) {
	obj := make(map[string]interface{}, len(c.Fields)+2)
	obj["type"] = c.Type
	if c.RequestID != "" {
		obj["requestId"] = c.RequestID
	}
	for _, f := range c.Fields {
		obj[f.Key] = f.Val.wire()
	}
	return json.Marshal(obj)
}

func (v Value) wire() interface{} {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueBool:
		return v.Bool
	case ValueList:
		list := make([]interface{}, len(v.List))
		for i, elem := range v.List {
			list[i] = elem.wire()
		}
		return list
	default:
		return nil
	}
}

// UnmarshalJSON parses the wire shape back into a Command. Unknown
// fields are preserved (sorted by key, since JSON objects are
// unordered) and unknown types decode without error - the caller
// decides whether to no-op them via Known().
func (c *Command) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	typeRaw, ok := raw["type"]
	if !ok {
		return fmt.Errorf("command without type field")
	}
	if err := json.Unmarshal(typeRaw, &c.Type); err != nil {
		return fmt.Errorf("command type: %w", err)
	}
	delete(raw, "type")

	if idRaw, ok := raw["requestId"]; ok {
		if err := json.Unmarshal(idRaw, &c.RequestID); err != nil {
			return fmt.Errorf("command requestId: %w", err)
		}
		delete(raw, "requestId")
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	c.Fields = nil
	for _, k := range keys {
		val, err := decodeValue(raw[k])
		if err != nil {
			return fmt.Errorf("command field %q: %w", k, err)
		}
		c.Fields = append(c.Fields, Field{Key: k, Val: val})
	}
	return nil
}

func decodeValue(raw json.RawMessage) (Value, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Value{}, err
	}
	return fromWire(generic)
}

func fromWire(generic interface{}) (Value, error) {
	switch v := generic.(type) {
	case string:
		return Str(v), nil
	case bool:
		return Bool(v), nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return Int(int64(v)), nil
		}
		return Float(v), nil
	case []interface{}:
		list := make([]Value, len(v))
		for i, elem := range v {
			decoded, err := fromWire(elem)
			if err != nil {
				return Value{}, err
			}
			list[i] = decoded
		}
		return Value{Kind: ValueList, List: list}, nil
	case nil:
		return Str(""), nil
	default:
		return Value{}, fmt.Errorf("unsupported field value %T", generic)
	}
}
