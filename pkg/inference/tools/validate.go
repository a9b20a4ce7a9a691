package tools

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// ValidateArguments checks raw call arguments against the tool's parameter schema.
func ValidateArguments(def *ToolDefinition, args json.RawMessage) error {
	if def == nil || def.Parameters == nil {
		return nil
	}

	raw, err := json.Marshal(def.Parameters)
	if err != nil {
		return errors.Wrap(err, "marshal tool schema")
	}
	// gojsonschema only knows drafts up to 7, drop the reflector's draft marker
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, "decode tool schema")
	}
	delete(doc, "$schema")
	delete(doc, "$id")

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	res, err := gojsonschema.Validate(gojsonschema.NewGoLoader(doc), gojsonschema.NewBytesLoader(args))
	if err != nil {
		return errors.Wrapf(err, "validate arguments for %s", def.Name)
	}
	if res.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.Errorf("invalid arguments for %s: %s", def.Name, strings.Join(msgs, "; "))
}
