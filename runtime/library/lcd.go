package library

import (
	"fmt"
	"strings"

	"github.com/breadboard-sim/breadboard/core/command"
	"github.com/breadboard-sim/breadboard/runtime/value"
)

// liquidCrystalEntry emulates the LiquidCrystal library in 4-bit
// (6 pins) or 8-bit (10 pins) wiring.
func liquidCrystalEntry() *TypeEntry {
	return &TypeEntry{
		Name: "LiquidCrystal",
		Construct: func(obj *Object, args []value.Value) ([]command.Command, error) {
			if len(args) != 6 && len(args) != 10 {
				return nil, fmt.Errorf("LiquidCrystal requires 6 or 10 pin arguments, got %d", len(args))
			}
			pins := make([]value.Value, len(args))
			for i, a := range args {
				pins[i] = value.IntValue(int32(a.AsInt64()))
			}
			obj.State["pins"] = value.ArrayValue(&value.ArrayCell{ElemKind: value.Int32, Elems: pins})
			obj.State["col"] = value.IntValue(0)
			obj.State["row"] = value.IntValue(0)
			return nil, nil
		},
		Methods: map[string]MethodFunc{
			"begin": func(obj *Object, args []value.Value) (Result, error) {
				if len(args) < 2 {
					return Result{}, fmt.Errorf("begin requires columns and rows")
				}
				obj.State["cols"] = value.IntValue(int32(args[0].AsInt64()))
				obj.State["rows"] = value.IntValue(int32(args[1].AsInt64()))
				return Result{
					Value:    value.VoidValue(),
					Commands: []command.Command{methodCall(obj, "begin", args)},
				}, nil
			},
			"setCursor": func(obj *Object, args []value.Value) (Result, error) {
				obj.State["col"] = value.IntValue(int32(argInt(args, 0, 0)))
				obj.State["row"] = value.IntValue(int32(argInt(args, 1, 0)))
				return Result{
					Value:    value.VoidValue(),
					Commands: []command.Command{methodCall(obj, "setCursor", args)},
				}, nil
			},
			"print": func(obj *Object, args []value.Value) (Result, error) {
				var sb strings.Builder
				for _, a := range args {
					sb.WriteString(a.String())
				}
				printed := sb.String()
				return Result{
					Value:    value.IntValue(int32(len(printed))),
					Commands: []command.Command{methodCall(obj, "print", []value.Value{value.StringValue(printed)})},
				}, nil
			},
			"clear": func(obj *Object, args []value.Value) (Result, error) {
				obj.State["col"] = value.IntValue(0)
				obj.State["row"] = value.IntValue(0)
				return Result{
					Value:    value.VoidValue(),
					Commands: []command.Command{methodCall(obj, "clear", nil)},
				}, nil
			},
			"home": func(obj *Object, args []value.Value) (Result, error) {
				obj.State["col"] = value.IntValue(0)
				obj.State["row"] = value.IntValue(0)
				return Result{
					Value:    value.VoidValue(),
					Commands: []command.Command{methodCall(obj, "home", nil)},
				}, nil
			},
		},
	}
}
