package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://voxelmind.ai/schemas/protocol/"

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*jsonschema.Schema{}
)

// SchemaFor returns the compiled schema for a message type, e.g. "DECIDE"
// maps to schemas/decide.schema.json.
func SchemaFor(msgType string) (*jsonschema.Schema, error) {
	name := schemaName(msgType)
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[name]; ok {
		return s, nil
	}
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("no schema for %s", msgType)
	}
	url := schemaBaseURL + name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	schemaCache[name] = s
	return s, nil
}

// Validate checks a raw message against the schema for its type.
func Validate(msgType string, raw []byte) error {
	s, err := SchemaFor(msgType)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}

func schemaName(msgType string) string {
	b := []byte(msgType)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b) + ".schema.json"
}
