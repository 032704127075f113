package library

import (
	"fmt"

	"github.com/breadboard-sim/breadboard/core/command"
	"github.com/breadboard-sim/breadboard/runtime/value"
)

// eepromSize matches the ATmega328P.
const eepromSize = 1024

// eepromEntry emulates the EEPROM library as a statics-only type. The
// cells live in the registry instance and start zeroed, so reads are
// deterministic and nothing persists between independent runs.
func eepromEntry() *TypeEntry {
	cells := func(state *TypeState) []byte {
		if state.Bytes == nil {
			state.Bytes = make([]byte, eepromSize)
		}
		return state.Bytes
	}

	bounds := func(addr int64) error {
		if addr < 0 || addr >= eepromSize {
			return fmt.Errorf("EEPROM address %d out of range [0, %d)", addr, eepromSize)
		}
		return nil
	}

	return &TypeEntry{
		Name: "EEPROM",
		Statics: map[string]StaticFunc{
			"length": func(state *TypeState, args []value.Value) (Result, error) {
				return Result{Value: value.IntValue(eepromSize)}, nil
			},
			"read": func(state *TypeState, args []value.Value) (Result, error) {
				addr := argInt(args, 0, 0)
				if err := bounds(addr); err != nil {
					return Result{}, err
				}
				return Result{Value: value.IntValue(int32(cells(state)[addr]))}, nil
			},
			"write": func(state *TypeState, args []value.Value) (Result, error) {
				addr := argInt(args, 0, 0)
				if err := bounds(addr); err != nil {
					return Result{}, err
				}
				b := byte(argInt(args, 1, 0))
				cells(state)[addr] = b
				return Result{
					Value: value.VoidValue(),
					Commands: []command.Command{
						command.LibraryMethodCall("EEPROM", "write", commandArgs(args)),
					},
				}, nil
			},
			"update": func(state *TypeState, args []value.Value) (Result, error) {
				addr := argInt(args, 0, 0)
				if err := bounds(addr); err != nil {
					return Result{}, err
				}
				b := byte(argInt(args, 1, 0))
				if cells(state)[addr] == b {
					// Same value: real EEPROM skips the write cycle.
					return Result{Value: value.VoidValue()}, nil
				}
				cells(state)[addr] = b
				return Result{
					Value: value.VoidValue(),
					Commands: []command.Command{
						command.LibraryMethodCall("EEPROM", "update", commandArgs(args)),
					},
				}, nil
			},
		},
	}
}
