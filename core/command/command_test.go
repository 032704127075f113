package command_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadboard-sim/breadboard/core/command"
)

func TestJSONWireShape(t *testing.T) {
	tests := []struct {
		name string
		cmd  command.Command
		want string
	}{
		{
			name: "pin mode",
			cmd:  command.PinMode(13, 1),
			want: `{"mode":1,"pin":13,"type":"PinMode"}`,
		},
		{
			name: "digital write low carries zero value",
			cmd:  command.DigitalWrite(13, 0),
			want: `{"pin":13,"type":"DigitalWrite","value":0}`,
		},
		{
			name: "analog read request",
			cmd:  command.AnalogReadRequest("req-1", 14),
			want: `{"pin":14,"requestId":"req-1","type":"AnalogReadRequest"}`,
		},
		{
			name: "serial print",
			cmd:  command.SerialPrint("hello", true),
			want: `{"newline":true,"text":"hello","type":"SerialPrint"}`,
		},
		{
			name: "program end has only a type",
			cmd:  command.ProgramEnd(),
			want: `{"type":"ProgramEnd"}`,
		},
		{
			name: "library method call",
			cmd:  command.LibraryMethodCall("arm", "write", []command.Value{command.Int(90)}),
			want: `{"args":[90],"method":"write","object":"arm","type":"LibraryMethodCall"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.cmd)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	cmds := []command.Command{
		command.ProgramStart("abc123"),
		command.PinMode(13, 1),
		command.DigitalWrite(13, 0),
		command.Delay(1000),
		command.SerialPrint("v=", false),
		command.AnalogReadRequest("req-1", 14),
		command.Warning("array index 9 out of bounds for length 4"),
		command.LoopLimitReached(2),
	}
	for _, cmd := range cmds {
		data, err := json.Marshal(cmd)
		require.NoError(t, err)

		var decoded command.Command
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, cmd.Type, decoded.Type)
		assert.Equal(t, cmd.RequestID, decoded.RequestID)
		for _, f := range cmd.Fields {
			got, ok := decoded.Field(f.Key)
			require.True(t, ok, "field %q lost in round trip", f.Key)
			if diff := cmp.Diff(f.Val, got); diff != "" {
				t.Errorf("field %q mismatch (-want +got):\n%s", f.Key, diff)
			}
		}
	}
}

func TestUnknownTypeDecodesAsNoOp(t *testing.T) {
	var cmd command.Command
	err := json.Unmarshal([]byte(`{"type":"QuantumWrite","pin":13,"spin":"up"}`), &cmd)
	require.NoError(t, err)
	assert.False(t, cmd.Known())
	assert.Equal(t, "QuantumWrite", cmd.Type)
	assert.Equal(t, int64(13), cmd.IntField("pin"))
}

func TestUnknownFieldsAreIgnoredButPreserved(t *testing.T) {
	var cmd command.Command
	err := json.Unmarshal([]byte(`{"type":"DigitalWrite","pin":13,"value":1,"futureField":"x"}`), &cmd)
	require.NoError(t, err)
	assert.True(t, cmd.Known())
	assert.Equal(t, int64(13), cmd.IntField("pin"))
	assert.Equal(t, "x", cmd.StrField("futureField"))
}

func TestDecodeRejectsMissingType(t *testing.T) {
	var cmd command.Command
	err := json.Unmarshal([]byte(`{"pin":13}`), &cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without type")
}

func TestIsRequest(t *testing.T) {
	assert.True(t, command.AnalogReadRequest("r", 0).IsRequest())
	assert.True(t, command.MillisRequest("r").IsRequest())
	assert.False(t, command.DigitalWrite(13, 1).IsRequest())
	assert.False(t, command.Error("boom").IsRequest())
}
