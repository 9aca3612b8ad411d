package domain

import (
	"encoding/json"
	"fmt"
)

// Stage is one node of a point-cloud processing graph. Tag identifies the node
// within its pipeline; Inputs reference earlier tags (none means pipeline head).
type Stage struct {
	Tag     string
	Type    string
	Inputs  []string
	Options map[string]any
}

// MarshalJSON flattens the stage into the object shape the engine consumes:
// {"tag": ..., "type": ..., "inputs": [...], <options>}.
func (s Stage) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Options)+3)
	for k, v := range s.Options {
		m[k] = v
	}
	m["tag"] = s.Tag
	m["type"] = s.Type
	if len(s.Inputs) > 0 {
		m["inputs"] = s.Inputs
	}
	return json.Marshal(m)
}

// UnmarshalJSON is the inverse of MarshalJSON. Whole numbers decode as int.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Stage{}
	for k, v := range raw {
		switch k {
		case "tag":
			if err := json.Unmarshal(v, &s.Tag); err != nil {
				return fmt.Errorf("stage tag: %w", err)
			}
		case "type":
			if err := json.Unmarshal(v, &s.Type); err != nil {
				return fmt.Errorf("stage type: %w", err)
			}
		case "inputs":
			if err := json.Unmarshal(v, &s.Inputs); err != nil {
				return fmt.Errorf("stage inputs: %w", err)
			}
		default:
			if isNumber(v) {
				var n json.Number
				if err := json.Unmarshal(v, &n); err != nil {
					return fmt.Errorf("stage option %s: %w", k, err)
				}
				if i, err := n.Int64(); err == nil {
					s.setOption(k, int(i))
					continue
				}
				f, err := n.Float64()
				if err != nil {
					return fmt.Errorf("stage option %s: %w", k, err)
				}
				s.setOption(k, f)
				continue
			}
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("stage option %s: %w", k, err)
			}
			s.setOption(k, val)
		}
	}
	return nil
}

func isNumber(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	c := raw[0]
	return c == '-' || (c >= '0' && c <= '9')
}

func (s *Stage) setOption(k string, v any) {
	if s.Options == nil {
		s.Options = make(map[string]any)
	}
	s.Options[k] = v
}

// Pipeline is the complete stage graph for one tile.
type Pipeline struct {
	TileName string   `json:"tile_name"`
	Stages   []Stage  `json:"stages"`
	Outputs  []string `json:"outputs"`
}

// Validate checks that tags are unique and every input is produced by an
// earlier stage.
func (p Pipeline) Validate() error {
	seen := make(map[string]bool, len(p.Stages))
	for i, st := range p.Stages {
		if st.Tag == "" {
			return invalid(p.TileName, fmt.Sprintf("stages[%d].tag", i), "is required")
		}
		if seen[st.Tag] {
			return invalid(p.TileName, fmt.Sprintf("stages[%d].tag", i), fmt.Sprintf("%q is not unique", st.Tag))
		}
		for _, in := range st.Inputs {
			if !seen[in] {
				return invalid(p.TileName, fmt.Sprintf("stages[%d].inputs", i), fmt.Sprintf("%q is not produced by an earlier stage", in))
			}
		}
		seen[st.Tag] = true
	}
	return nil
}

// EngineJSON serialises the stage graph as a PDAL pipeline document.
func (p Pipeline) EngineJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pipeline []Stage `json:"pipeline"`
	}{p.Stages})
}

// Tags lists the stage tags in order.
func (p Pipeline) Tags() []string {
	tags := make([]string, len(p.Stages))
	for i, st := range p.Stages {
		tags[i] = st.Tag
	}
	return tags
}
