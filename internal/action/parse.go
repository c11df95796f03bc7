package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be recovered from a reply.
var ErrNoJSON = errors.New("no json object in decision content")

// ParseJSON decodes a decision reply. Models sometimes wrap the object in prose
// or code fences, so on a decode failure the first {...} span is retried.
func ParseJSON(raw []byte) (Action, error) {
	doc, err := decode(raw)
	if err != nil {
		start := bytes.IndexByte(raw, '{')
		end := bytes.LastIndexByte(raw, '}')
		if start < 0 || end <= start {
			return None(), ErrNoJSON
		}
		doc, err = decode(raw[start : end+1])
		if err != nil {
			return None(), ErrNoJSON
		}
	}
	return Parse(doc), nil
}

// Decode returns the generic document tree used by Parse and Lint.
func Decode(raw []byte) (any, error) { return decode(raw) }

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Parse normalizes an arbitrary document into an Action. It never fails: a
// field that cannot be read degrades to its absent state.
func Parse(doc any) Action {
	root, ok := doc.(map[string]any)
	if !ok {
		return None()
	}
	return Action{
		Chat:       parseChat(root["chat"]),
		Navigation: parseNavigation(root["navigation"]),
		View:       parseView(root["view"]),
		Mouse:      parseMouse(root["mouse"]),
		Target:     parseTarget(root["target"]),
	}
}

func parseChat(v any) Chat {
	switch t := v.(type) {
	case map[string]any:
		if s, ok := scalarString(t["message"]); ok {
			if s = strings.TrimSpace(s); s != "" {
				return ChatText(s)
			}
		}
	default:
		if s, ok := scalarString(v); ok {
			if s = strings.TrimSpace(s); s != "" {
				return ChatText(s)
			}
		}
	}
	return Chat{}
}

func parseNavigation(v any) Navigation {
	o, ok := v.(map[string]any)
	if !ok {
		return Navigation{}
	}
	return Navigation{
		DX: optInt(o["dx"]),
		DY: optInt(o["dy"]),
		DZ: optInt(o["dz"]),
	}
}

func parseView(v any) View {
	o, ok := v.(map[string]any)
	if !ok {
		return View{}
	}
	return View{
		YawAbs:     optFloat(o["yawAbs"]),
		PitchAbs:   optFloat(o["pitchAbs"]),
		YawDelta:   optFloat(o["yawDelta"]),
		PitchDelta: optFloat(o["pitchDelta"]),
	}
}

func parseMouse(v any) Mouse {
	switch t := v.(type) {
	case string:
		return Mouse{Left: ParsePressKind(t)}
	case map[string]any:
		var m Mouse
		if s, ok := t["left"].(string); ok {
			m.Left = ParsePressKind(s)
		}
		if s, ok := t["right"].(string); ok {
			m.Right = ParsePressKind(s)
		}
		return m
	}
	return Mouse{}
}

func parseTarget(v any) *Target {
	o, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &Target{
		X:          optInt(o["x"]),
		Y:          optInt(o["y"]),
		Z:          optInt(o["z"]),
		BlockID:    optString(o["blockId"]),
		BlockTag:   optString(o["blockTag"]),
		EntityType: optString(o["entityType"]),
		EntityName: optString(o["entityName"]),
	}
}

// optInt reads an integer field. Values outside the int32 range are absent.
func optInt(v any) *int {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int32Of(float64(i))
		}
		if f, err := t.Float64(); err == nil {
			return int32Of(math.Round(f))
		}
	case float64:
		return int32Of(math.Round(t))
	case int:
		return int32Of(float64(t))
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 32); err == nil {
			return Int(int(i))
		}
	}
	return nil
}

func int32Of(f float64) *int {
	if math.IsNaN(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return nil
	}
	return Int(int(f))
}

func optFloat(v any) *float32 {
	var f float64
	switch t := v.(type) {
	case json.Number:
		x, err := t.Float64()
		if err != nil {
			return nil
		}
		f = x
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(t), 32)
		if err != nil {
			return nil
		}
		f = x
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return Float(float32(f))
}

func optString(v any) *string {
	s, ok := scalarString(v)
	if !ok {
		return nil
	}
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return String(s)
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
