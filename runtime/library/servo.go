package library

import (
	"fmt"

	"github.com/breadboard-sim/breadboard/core/command"
	"github.com/breadboard-sim/breadboard/runtime/value"
)

// servoEntry emulates the Servo library: attach/detach, write/read in
// degrees, writeMicroseconds/readMicroseconds in pulse width.
func servoEntry() *TypeEntry {
	return &TypeEntry{
		Name: "Servo",
		Construct: func(obj *Object, args []value.Value) ([]command.Command, error) {
			if len(args) != 0 {
				return nil, fmt.Errorf("Servo takes no constructor arguments, got %d", len(args))
			}
			obj.State["attached"] = value.BoolValue(false)
			obj.State["angle"] = value.IntValue(90)
			obj.State["us"] = value.IntValue(1500)
			return nil, nil
		},
		Methods: map[string]MethodFunc{
			"attach": func(obj *Object, args []value.Value) (Result, error) {
				if len(args) < 1 {
					return Result{}, fmt.Errorf("attach requires a pin")
				}
				obj.State["attached"] = value.BoolValue(true)
				obj.State["pin"] = value.IntValue(int32(args[0].AsInt64()))
				return Result{
					Value:    value.VoidValue(),
					Commands: []command.Command{methodCall(obj, "attach", args)},
				}, nil
			},
			"detach": func(obj *Object, args []value.Value) (Result, error) {
				obj.State["attached"] = value.BoolValue(false)
				return Result{
					Value:    value.VoidValue(),
					Commands: []command.Command{methodCall(obj, "detach", args)},
				}, nil
			},
			"attached": func(obj *Object, args []value.Value) (Result, error) {
				return Result{Value: obj.State["attached"]}, nil
			},
			"write": func(obj *Object, args []value.Value) (Result, error) {
				angle := argInt(args, 0, 0)
				if angle < 0 {
					angle = 0
				}
				if angle > 180 {
					angle = 180
				}
				obj.State["angle"] = value.IntValue(int32(angle))
				// Standard servo pulse mapping: 0..180 deg -> 544..2400 us.
				obj.State["us"] = value.IntValue(int32(544 + angle*(2400-544)/180))
				return Result{
					Value:    value.VoidValue(),
					Commands: []command.Command{methodCall(obj, "write", args)},
				}, nil
			},
			"read": func(obj *Object, args []value.Value) (Result, error) {
				return Result{Value: obj.State["angle"]}, nil
			},
			"writeMicroseconds": func(obj *Object, args []value.Value) (Result, error) {
				us := argInt(args, 0, 1500)
				obj.State["us"] = value.IntValue(int32(us))
				return Result{
					Value:    value.VoidValue(),
					Commands: []command.Command{methodCall(obj, "writeMicroseconds", args)},
				}, nil
			},
			"readMicroseconds": func(obj *Object, args []value.Value) (Result, error) {
				return Result{Value: obj.State["us"]}, nil
			},
		},
	}
}
