package engine

import (
	"fmt"
	"math"

	"github.com/breadboard-sim/breadboard/core/command"
	"github.com/breadboard-sim/breadboard/core/invariant"
	"github.com/breadboard-sim/breadboard/runtime/value"
)

// Board constants predeclared in every run's global scope.
var boardConstants = []struct {
	name string
	v    int32
}{
	{"HIGH", 1},
	{"LOW", 0},
	{"INPUT", 0},
	{"OUTPUT", 1},
	{"INPUT_PULLUP", 2},
	{"LED_BUILTIN", 13},
	{"A0", 14},
	{"A1", 15},
	{"A2", 16},
	{"A3", 17},
	{"A4", 18},
	{"A5", 19},
}

func (e *Engine) declareConstants() {
	for _, c := range boardConstants {
		err := e.store.Declare(c.name, value.IntValue(c.v))
		invariant.Invariant(err == nil, "constant %s: %v", c.name, err)
	}
}

type builtinFunc func(e *Engine, args []value.Value) (value.Value, error)

// builtins are the core functions evaluated in-engine. Hardware effects
// emit commands; host-resolved values suspend through awaitHostValue;
// the math and random helpers are pure (the generator is a fixed LCG so
// command streams stay byte-identical across conforming engines).
var builtins = map[string]builtinFunc{
	"pinMode":           biPinMode,
	"digitalWrite":      biDigitalWrite,
	"analogWrite":       biAnalogWrite,
	"delay":             biDelay,
	"delayMicroseconds": biDelayMicroseconds,
	"tone":              biTone,
	"noTone":            biNoTone,

	"digitalRead": biDigitalRead,
	"analogRead":  biAnalogRead,
	"millis":      biMillis,
	"micros":      biMicros,
	"pulseIn":     biPulseIn,

	"abs":        biAbs,
	"min":        biMin,
	"max":        biMax,
	"constrain":  biConstrain,
	"map":        biMap,
	"random":     biRandom,
	"randomSeed": biRandomSeed,
}

func needArgs(name string, args []value.Value, minArgs, maxArgs int) error {
	if len(args) < minArgs || len(args) > maxArgs {
		if minArgs == maxArgs {
			return fmt.Errorf("%s expects %d arguments, got %d", name, minArgs, len(args))
		}
		return fmt.Errorf("%s expects %d to %d arguments, got %d", name, minArgs, maxArgs, len(args))
	}
	for i, a := range args {
		if !a.IsNumeric() {
			return fmt.Errorf("%s: argument %d must be numeric, got %s", name, i+1, a.Kind)
		}
	}
	return nil
}

// Effects.

func biPinMode(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("pinMode", args, 2, 2); err != nil {
		return value.Value{}, err
	}
	e.emit(command.PinMode(args[0].AsInt64(), args[1].AsInt64()))
	return value.VoidValue(), nil
}

func biDigitalWrite(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("digitalWrite", args, 2, 2); err != nil {
		return value.Value{}, err
	}
	e.emit(command.DigitalWrite(args[0].AsInt64(), args[1].AsInt64()))
	return value.VoidValue(), nil
}

func biAnalogWrite(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("analogWrite", args, 2, 2); err != nil {
		return value.Value{}, err
	}
	e.emit(command.AnalogWrite(args[0].AsInt64(), args[1].AsInt64()))
	return value.VoidValue(), nil
}

func biDelay(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("delay", args, 1, 1); err != nil {
		return value.Value{}, err
	}
	e.emit(command.Delay(args[0].AsInt64()))
	return value.VoidValue(), nil
}

func biDelayMicroseconds(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("delayMicroseconds", args, 1, 1); err != nil {
		return value.Value{}, err
	}
	e.emit(command.DelayMicroseconds(args[0].AsInt64()))
	return value.VoidValue(), nil
}

func biTone(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("tone", args, 2, 3); err != nil {
		return value.Value{}, err
	}
	var duration int64
	if len(args) == 3 {
		duration = args[2].AsInt64()
	}
	e.emit(command.Tone(args[0].AsInt64(), args[1].AsInt64(), duration))
	return value.VoidValue(), nil
}

func biNoTone(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("noTone", args, 1, 1); err != nil {
		return value.Value{}, err
	}
	e.emit(command.NoTone(args[0].AsInt64()))
	return value.VoidValue(), nil
}

// Host-resolved values. Each suspends the engine until the host
// answers; the answer is coerced to the primitive's natural width.

func biDigitalRead(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("digitalRead", args, 1, 1); err != nil {
		return value.Value{}, err
	}
	pin := args[0].AsInt64()
	v := e.awaitHostValue(func(id string) command.Command {
		return command.DigitalReadRequest(id, pin)
	})
	return value.Convert(v, value.Int32)
}

func biAnalogRead(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("analogRead", args, 1, 1); err != nil {
		return value.Value{}, err
	}
	pin := args[0].AsInt64()
	v := e.awaitHostValue(func(id string) command.Command {
		return command.AnalogReadRequest(id, pin)
	})
	return value.Convert(v, value.Int32)
}

func biMillis(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("millis", args, 0, 0); err != nil {
		return value.Value{}, err
	}
	v := e.awaitHostValue(command.MillisRequest)
	return value.Convert(v, value.UInt32)
}

func biMicros(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("micros", args, 0, 0); err != nil {
		return value.Value{}, err
	}
	v := e.awaitHostValue(command.MicrosRequest)
	return value.Convert(v, value.UInt32)
}

func biPulseIn(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("pulseIn", args, 2, 3); err != nil {
		return value.Value{}, err
	}
	pin := args[0].AsInt64()
	level := args[1].AsInt64()
	timeout := int64(1000000) // 1 second, the board library default
	if len(args) == 3 {
		timeout = args[2].AsInt64()
	}
	v := e.awaitHostValue(func(id string) command.Command {
		return command.PulseInRequest(id, pin, level, timeout)
	})
	return value.Convert(v, value.UInt32)
}

// Math helpers, evaluated in-engine.

func biAbs(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("abs", args, 1, 1); err != nil {
		return value.Value{}, err
	}
	if args[0].Kind == value.Float64 {
		return value.FloatValue(math.Abs(args[0].F)), nil
	}
	n := args[0].AsInt64()
	if n < 0 {
		n = -n
	}
	return value.IntValue(int32(n)), nil
}

func biMin(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("min", args, 2, 2); err != nil {
		return value.Value{}, err
	}
	if args[0].AsFloat() <= args[1].AsFloat() {
		return args[0], nil
	}
	return args[1], nil
}

func biMax(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("max", args, 2, 2); err != nil {
		return value.Value{}, err
	}
	if args[0].AsFloat() >= args[1].AsFloat() {
		return args[0], nil
	}
	return args[1], nil
}

func biConstrain(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("constrain", args, 3, 3); err != nil {
		return value.Value{}, err
	}
	x, lo, hi := args[0], args[1], args[2]
	if x.AsFloat() < lo.AsFloat() {
		return lo, nil
	}
	if x.AsFloat() > hi.AsFloat() {
		return hi, nil
	}
	return x, nil
}

func biMap(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("map", args, 5, 5); err != nil {
		return value.Value{}, err
	}
	x := args[0].AsInt64()
	inMin, inMax := args[1].AsInt64(), args[2].AsInt64()
	outMin, outMax := args[3].AsInt64(), args[4].AsInt64()
	if inMax == inMin {
		return value.Value{}, fmt.Errorf("map: input range is zero")
	}
	out := (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
	return value.IntValue(int32(out)), nil
}

// nextRand advances the run-local LCG. The constants are pinned: both
// conforming engines must produce the same sequence for the same seed.
func (e *Engine) nextRand() uint32 {
	e.rng = e.rng*6364136223846793005 + 1442695040888963407
	return uint32(e.rng >> 33)
}

func biRandom(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("random", args, 1, 2); err != nil {
		return value.Value{}, err
	}
	lo, hi := int64(0), args[0].AsInt64()
	if len(args) == 2 {
		lo, hi = args[0].AsInt64(), args[1].AsInt64()
	}
	span := hi - lo
	if span <= 0 {
		return value.IntValue(int32(lo)), nil
	}
	return value.IntValue(int32(lo + int64(e.nextRand())%span)), nil
}

func biRandomSeed(e *Engine, args []value.Value) (value.Value, error) {
	if err := needArgs("randomSeed", args, 1, 1); err != nil {
		return value.Value{}, err
	}
	if seed := args[0].AsInt64(); seed != 0 {
		e.rng = uint64(seed)
	}
	return value.VoidValue(), nil
}
