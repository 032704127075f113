package library

import (
	"strings"

	"github.com/breadboard-sim/breadboard/core/command"
	"github.com/breadboard-sim/breadboard/runtime/value"
)

// serialEntry emulates the Serial monitor as a statics-only type:
// `Serial` is never constructed, its methods dispatch through
// CallStatic. Output travels as SerialPrint commands; reading serial
// input is host-resolved and therefore lives in the engine's
// request/response path, not here.
func serialEntry() *TypeEntry {
	printArgs := func(args []value.Value) string {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(a.String())
		}
		return sb.String()
	}

	return &TypeEntry{
		Name: "Serial",
		Statics: map[string]StaticFunc{
			"begin": func(state *TypeState, args []value.Value) (Result, error) {
				baud := argInt(args, 0, 9600)
				state.Fields["baud"] = value.IntValue(int32(baud))
				return Result{
					Value:    value.VoidValue(),
					Commands: []command.Command{command.SerialBegin(baud)},
				}, nil
			},
			"end": func(state *TypeState, args []value.Value) (Result, error) {
				delete(state.Fields, "baud")
				return Result{Value: value.VoidValue()}, nil
			},
			"print": func(state *TypeState, args []value.Value) (Result, error) {
				text := printArgs(args)
				return Result{
					Value:    value.IntValue(int32(len(text))),
					Commands: []command.Command{command.SerialPrint(text, false)},
				}, nil
			},
			"println": func(state *TypeState, args []value.Value) (Result, error) {
				text := printArgs(args)
				return Result{
					Value:    value.IntValue(int32(len(text) + 2)), // CR+LF counted, Arduino-style
					Commands: []command.Command{command.SerialPrint(text, true)},
				}, nil
			},
			"write": func(state *TypeState, args []value.Value) (Result, error) {
				b := argInt(args, 0, 0)
				return Result{
					Value:    value.IntValue(1),
					Commands: []command.Command{command.SerialPrint(string(rune(byte(b))), false)},
				}, nil
			},
		},
	}
}
