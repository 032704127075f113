package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/breadboard-sim/breadboard/core/command"
	"github.com/breadboard-sim/breadboard/runtime/value"
)

// answerSchema is the JSON shape of an answer script. Entries are
// consumed strictly in request order; type and pin, when present, must
// match the request they answer. "default" answers requests past the
// end of the list.
const answerSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "answers": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type":  {"type": "string"},
          "pin":   {"type": "integer"},
          "value": {"type": "number"}
        },
        "required": ["value"],
        "additionalProperties": false
      }
    },
    "default": {"type": "number"}
  },
  "additionalProperties": false
}`

var compiledAnswerSchema = jsonschema.MustCompileString("answers.schema.json", answerSchema)

type answerEntry struct {
	Type  string  `json:"type"`
	Pin   *int64  `json:"pin"`
	Value float64 `json:"value"`
}

type answerScript struct {
	entries []answerEntry
	def     float64
	cursor  int
}

// loadAnswers parses and validates an answer script file. A nil script
// answers every request with zero.
func loadAnswers(path string) (*answerScript, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("answers %s: %w", path, err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("answers %s: %w", path, err)
	}
	if err := compiledAnswerSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("answers %s: %w", path, err)
	}

	var raw struct {
		Answers []answerEntry `json:"answers"`
		Default float64       `json:"default"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("answers %s: %w", path, err)
	}
	return &answerScript{entries: raw.Answers, def: raw.Default}, nil
}

// Next resolves the answer for a request command. A nil script and an
// exhausted script both fall back to the default value.
func (s *answerScript) Next(req command.Command) (value.Value, error) {
	if s == nil {
		return scriptValue(0), nil
	}
	if s.cursor >= len(s.entries) {
		return scriptValue(s.def), nil
	}
	entry := s.entries[s.cursor]
	s.cursor++

	if entry.Type != "" && entry.Type != req.Type {
		return value.Value{}, fmt.Errorf("answer %d expects %s, engine requested %s", s.cursor, entry.Type, req.Type)
	}
	if entry.Pin != nil {
		if pin := req.IntField("pin"); pin != *entry.Pin {
			return value.Value{}, fmt.Errorf("answer %d expects pin %d, engine requested pin %d", s.cursor, *entry.Pin, pin)
		}
	}
	return scriptValue(entry.Value), nil
}

// scriptValue maps a JSON number onto a runtime value: integral numbers
// become ints (unsigned when they exceed int32), everything else a
// float.
func scriptValue(f float64) value.Value {
	if f == math.Trunc(f) {
		n := int64(f)
		if n > math.MaxInt32 && n <= math.MaxUint32 {
			return value.UIntValue(uint32(n))
		}
		return value.IntValue(int32(n))
	}
	return value.FloatValue(f)
}
