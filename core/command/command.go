// Package command defines the records the engine emits to its host.
//
// Commands are the engine's only output channel: hardware effects,
// diagnostics, lifecycle markers, and value requests all travel as
// Command records in strict generation order. A Command carries plain
// data only - never a live reference into engine memory - so it is
// always safely serializable.
package command

// Known command types. Consumers must treat unknown types as no-ops
// and ignore unknown fields (forward compatibility).
const (
	// Lifecycle.
	TypeProgramStart     = "ProgramStart"
	TypeProgramEnd       = "ProgramEnd"
	TypeLoopLimitReached = "LoopLimitReached"

	// Hardware effects.
	TypePinMode                    = "PinMode"
	TypeDigitalWrite               = "DigitalWrite"
	TypeAnalogWrite                = "AnalogWrite"
	TypeDelay                      = "Delay"
	TypeDelayMicroseconds          = "DelayMicroseconds"
	TypeTone                       = "Tone"
	TypeNoTone                     = "NoTone"
	TypeSerialBegin                = "SerialBegin"
	TypeSerialPrint                = "SerialPrint"
	TypeLibraryObjectInstantiation = "LibraryObjectInstantiation"
	TypeLibraryMethodCall          = "LibraryMethodCall"

	// Diagnostics.
	TypeError   = "Error"
	TypeWarning = "Warning"

	// Requests: values only the host can supply. Each request carries a
	// RequestID and is answered by exactly one ResumeWithValue call.
	TypeDigitalReadRequest = "DigitalReadRequest"
	TypeAnalogReadRequest  = "AnalogReadRequest"
	TypeMillisRequest      = "MillisRequest"
	TypeMicrosRequest      = "MicrosRequest"
	TypePulseInRequest     = "PulseInRequest"
)

// Command is a self-describing engine-to-host record.
type Command struct {
	Type      string
	RequestID string // requests only
	Fields    []Field
}

// Field is one type-specific key/value pair. Fields keep their
// generation order so canonical encoding is stable.
type Field struct {
	Key string
	Val Value
}

// ValueKind discriminates Value payloads.
type ValueKind uint8

const (
	ValueString ValueKind = iota
	ValueInt
	ValueFloat
	ValueBool
	ValueList
)

// Value is a plain-data field value.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	List  []Value
}

// Str, Int, Float, Bool and List build field values.
func Str(v string) Value    { return Value{Kind: ValueString, Str: v} }
func Int(v int64) Value     { return Value{Kind: ValueInt, Int: v} }
func Float(v float64) Value { return Value{Kind: ValueFloat, Float: v} }
func Bool(v bool) Value     { return Value{Kind: ValueBool, Bool: v} }
func List(vs ...Value) Value {
	return Value{Kind: ValueList, List: vs}
}

var requestTypes = map[string]bool{
	TypeDigitalReadRequest: true,
	TypeAnalogReadRequest:  true,
	TypeMillisRequest:      true,
	TypeMicrosRequest:      true,
	TypePulseInRequest:     true,
}

var knownTypes = map[string]bool{
	TypeProgramStart:               true,
	TypeProgramEnd:                 true,
	TypeLoopLimitReached:           true,
	TypePinMode:                    true,
	TypeDigitalWrite:               true,
	TypeAnalogWrite:                true,
	TypeDelay:                      true,
	TypeDelayMicroseconds:          true,
	TypeTone:                       true,
	TypeNoTone:                     true,
	TypeSerialBegin:                true,
	TypeSerialPrint:                true,
	TypeLibraryObjectInstantiation: true,
	TypeLibraryMethodCall:          true,
	TypeError:                      true,
	TypeWarning:                    true,
	TypeDigitalReadRequest:         true,
	TypeAnalogReadRequest:          true,
	TypeMillisRequest:              true,
	TypeMicrosRequest:              true,
	TypePulseInRequest:             true,
}

// IsRequest reports whether the command suspends the engine until the
// host answers with ResumeWithValue.
func (c Command) IsRequest() bool { return requestTypes[c.Type] }

// Known reports whether the command type is part of this protocol
// version. Unknown commands decode fine and must be treated as no-ops.
func (c Command) Known() bool { return knownTypes[c.Type] }

// Field returns the value for key and whether it is present.
func (c Command) Field(key string) (Value, bool) {
	for _, f := range c.Fields {
		if f.Key == key {
			return f.Val, true
		}
	}
	return Value{}, false
}

// IntField returns the int value for key, or 0 when absent.
func (c Command) IntField(key string) int64 {
	if v, ok := c.Field(key); ok && v.Kind == ValueInt {
		return v.Int
	}
	return 0
}

// StrField returns the string value for key, or "" when absent.
func (c Command) StrField(key string) string {
	if v, ok := c.Field(key); ok && v.Kind == ValueString {
		return v.Str
	}
	return ""
}

// Lifecycle constructors.

// ProgramStart marks the beginning of a run; fingerprint is the hex
// BLAKE2b-256 program fingerprint from the AST codec.
func ProgramStart(fingerprint string) Command {
	return Command{Type: TypeProgramStart, Fields: []Field{
		{Key: "fingerprint", Val: Str(fingerprint)},
	}}
}

// ProgramEnd marks a run that finished without hitting the loop ceiling
// (setup-only programs).
func ProgramEnd() Command {
	return Command{Type: TypeProgramEnd}
}

// LoopLimitReached marks a run stopped by the configured iteration
// ceiling.
func LoopLimitReached(iterations int64) Command {
	return Command{Type: TypeLoopLimitReached, Fields: []Field{
		{Key: "iterations", Val: Int(iterations)},
	}}
}

// Effect constructors.

func PinMode(pin, mode int64) Command {
	return Command{Type: TypePinMode, Fields: []Field{
		{Key: "pin", Val: Int(pin)},
		{Key: "mode", Val: Int(mode)},
	}}
}

func DigitalWrite(pin, value int64) Command {
	return Command{Type: TypeDigitalWrite, Fields: []Field{
		{Key: "pin", Val: Int(pin)},
		{Key: "value", Val: Int(value)},
	}}
}

func AnalogWrite(pin, value int64) Command {
	return Command{Type: TypeAnalogWrite, Fields: []Field{
		{Key: "pin", Val: Int(pin)},
		{Key: "value", Val: Int(value)},
	}}
}

func Delay(ms int64) Command {
	return Command{Type: TypeDelay, Fields: []Field{
		{Key: "ms", Val: Int(ms)},
	}}
}

func DelayMicroseconds(us int64) Command {
	return Command{Type: TypeDelayMicroseconds, Fields: []Field{
		{Key: "us", Val: Int(us)},
	}}
}

func Tone(pin, frequency, durationMs int64) Command {
	fields := []Field{
		{Key: "pin", Val: Int(pin)},
		{Key: "frequency", Val: Int(frequency)},
	}
	if durationMs > 0 {
		fields = append(fields, Field{Key: "duration", Val: Int(durationMs)})
	}
	return Command{Type: TypeTone, Fields: fields}
}

func NoTone(pin int64) Command {
	return Command{Type: TypeNoTone, Fields: []Field{
		{Key: "pin", Val: Int(pin)},
	}}
}

func SerialBegin(baud int64) Command {
	return Command{Type: TypeSerialBegin, Fields: []Field{
		{Key: "baud", Val: Int(baud)},
	}}
}

func SerialPrint(text string, newline bool) Command {
	return Command{Type: TypeSerialPrint, Fields: []Field{
		{Key: "text", Val: Str(text)},
		{Key: "newline", Val: Bool(newline)},
	}}
}

func LibraryObjectInstantiation(typeName, object string, args []Value) Command {
	return Command{Type: TypeLibraryObjectInstantiation, Fields: []Field{
		{Key: "library", Val: Str(typeName)},
		{Key: "object", Val: Str(object)},
		{Key: "args", Val: List(args...)},
	}}
}

func LibraryMethodCall(object, method string, args []Value) Command {
	return Command{Type: TypeLibraryMethodCall, Fields: []Field{
		{Key: "object", Val: Str(object)},
		{Key: "method", Val: Str(method)},
		{Key: "args", Val: List(args...)},
	}}
}

// Diagnostic constructors.

func Error(message string) Command {
	return Command{Type: TypeError, Fields: []Field{
		{Key: "message", Val: Str(message)},
	}}
}

func Warning(message string) Command {
	return Command{Type: TypeWarning, Fields: []Field{
		{Key: "message", Val: Str(message)},
	}}
}

// Request constructors.

func DigitalReadRequest(requestID string, pin int64) Command {
	return Command{Type: TypeDigitalReadRequest, RequestID: requestID, Fields: []Field{
		{Key: "pin", Val: Int(pin)},
	}}
}

func AnalogReadRequest(requestID string, pin int64) Command {
	return Command{Type: TypeAnalogReadRequest, RequestID: requestID, Fields: []Field{
		{Key: "pin", Val: Int(pin)},
	}}
}

func MillisRequest(requestID string) Command {
	return Command{Type: TypeMillisRequest, RequestID: requestID}
}

func MicrosRequest(requestID string) Command {
	return Command{Type: TypeMicrosRequest, RequestID: requestID}
}

func PulseInRequest(requestID string, pin, level, timeoutUs int64) Command {
	return Command{Type: TypePulseInRequest, RequestID: requestID, Fields: []Field{
		{Key: "pin", Val: Int(pin)},
		{Key: "level", Val: Int(level)},
		{Key: "timeout", Val: Int(timeoutUs)},
	}}
}
