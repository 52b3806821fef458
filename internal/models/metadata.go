package models

import (
	"encoding/json"
	"fmt"
)

// MetaKind tags the payload carried by a MetaValue.
type MetaKind string

const (
	MetaKindString MetaKind = "string"
	MetaKindNumber MetaKind = "number"
	MetaKindPath   MetaKind = "path"
	MetaKindMap    MetaKind = "map"
)

// MetaValue is one value of a metadata mapping. Pipeline stages attach
// diagnostics under documented keys without requiring schema changes, but the
// value itself is always one of a small set of tagged shapes instead of a
// schemaless blob.
type MetaValue struct {
	Kind MetaKind
	Str  string
	Num  float64
	Map  Metadata
}

// Metadata maps documented string keys to tagged values. Stored as a JSON
// column on projects and usage log entries.
type Metadata map[string]MetaValue

func MetaString(s string) MetaValue { return MetaValue{Kind: MetaKindString, Str: s} }
func MetaNumber(n float64) MetaValue {
	return MetaValue{Kind: MetaKindNumber, Num: n}
}
func MetaPath(p string) MetaValue { return MetaValue{Kind: MetaKindPath, Str: p} }
func MetaMap(m Metadata) MetaValue {
	return MetaValue{Kind: MetaKindMap, Map: m}
}

type metaValueJSON struct {
	Kind  MetaKind        `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (v MetaValue) MarshalJSON() ([]byte, error) {
	var inner any
	switch v.Kind {
	case MetaKindString, MetaKindPath:
		inner = v.Str
	case MetaKindNumber:
		inner = v.Num
	case MetaKindMap:
		inner = v.Map
	default:
		return nil, fmt.Errorf("unknown metadata kind %q", v.Kind)
	}
	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	return json.Marshal(metaValueJSON{Kind: v.Kind, Value: raw})
}

func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var wire metaValueJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	v.Kind = wire.Kind
	switch wire.Kind {
	case MetaKindString, MetaKindPath:
		return json.Unmarshal(wire.Value, &v.Str)
	case MetaKindNumber:
		return json.Unmarshal(wire.Value, &v.Num)
	case MetaKindMap:
		return json.Unmarshal(wire.Value, &v.Map)
	default:
		return fmt.Errorf("unknown metadata kind %q", wire.Kind)
	}
}

// Clone returns a deep copy so stages can build on prior metadata without
// aliasing the stored map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		if v.Kind == MetaKindMap {
			v.Map = v.Map.Clone()
		}
		out[k] = v
	}
	return out
}
