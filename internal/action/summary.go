package action

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/decision.schema.json
var decisionSchema string

const decisionSchemaURL = "https://voxelmind.ai/schemas/decision.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Schema returns the compiled canonical decision schema.
func Schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(decisionSchemaURL, decisionSchema)
	})
	return schema, schemaErr
}

// SchemaText is the raw schema, used in prompts.
func SchemaText() string { return decisionSchema }

// Lint reports where doc deviates from the canonical decision shape. It is
// advisory only: Parse accepts documents that Lint complains about.
func Lint(doc any) []string {
	s, err := Schema()
	if err != nil {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	err = s.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range ve.BasicOutput().Errors {
		if e.InstanceLocation == "" && len(out) > 0 {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", e.InstanceLocation, e.Error))
	}
	return out
}

// Summary renders the normalized action as a document in canonical shape.
// Absent fields are rendered as null, so Parse(Summary(a)) reproduces a.
func Summary(a Action) map[string]any {
	chat := map[string]any{"message": nil}
	if msg, ok := a.Chat.Text(); ok {
		chat["message"] = msg
	}
	nav := map[string]any{
		"dx": intOrNil(a.Navigation.DX),
		"dy": intOrNil(a.Navigation.DY),
		"dz": intOrNil(a.Navigation.DZ),
	}
	view := map[string]any{
		"yawAbs":     floatOrNil(a.View.YawAbs),
		"pitchAbs":   floatOrNil(a.View.PitchAbs),
		"yawDelta":   floatOrNil(a.View.YawDelta),
		"pitchDelta": floatOrNil(a.View.PitchDelta),
	}
	mouse := map[string]any{
		"left":  a.Mouse.Left.String(),
		"right": a.Mouse.Right.String(),
	}
	var target any
	if t := a.Target; t != nil {
		target = map[string]any{
			"x":          intOrNil(t.X),
			"y":          intOrNil(t.Y),
			"z":          intOrNil(t.Z),
			"blockId":    stringOrNil(t.BlockID),
			"blockTag":   stringOrNil(t.BlockTag),
			"entityType": stringOrNil(t.EntityType),
			"entityName": stringOrNil(t.EntityName),
		}
	}
	return map[string]any{
		"chat":       chat,
		"navigation": nav,
		"view":       view,
		"mouse":      mouse,
		"target":     target,
	}
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatOrNil(p *float32) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
