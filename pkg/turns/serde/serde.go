// Package serde reads and writes Turns as YAML documents.
package serde

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/sentient/pkg/turns"
)

// FormatVersion is written into every document.
const FormatVersion = 1

type Options struct {
	// OmitMetadata drops Turn.Metadata (provider, usage, ...) from the output.
	OmitMetadata bool
}

type document struct {
	Version int         `yaml:"version"`
	Turn    *turns.Turn `yaml:"turn"`
}

// normalize fills the fields a hand-written document may leave out.
func normalize(t *turns.Turn) {
	for i := range t.Blocks {
		b := &t.Blocks[i]
		if b.Payload == nil {
			b.Payload = map[string]any{}
		}
		if b.Role != "" {
			continue
		}
		switch b.Kind {
		case turns.BlockKindUser:
			b.Role = turns.RoleUser
		case turns.BlockKindSystem:
			b.Role = turns.RoleSystem
		case turns.BlockKindLLMText, turns.BlockKindToolCall:
			b.Role = turns.RoleAssistant
		}
	}
}

// ToYAML encodes a copy of t; t itself is left untouched.
func ToYAML(t *turns.Turn, opt Options) ([]byte, error) {
	snapshot := &turns.Turn{}
	if t != nil {
		snapshot = t.Clone()
	}
	if opt.OmitMetadata {
		snapshot.Metadata = nil
	}
	normalize(snapshot)
	return yaml.Marshal(document{Version: FormatVersion, Turn: snapshot})
}

// FromYAML decodes a document written by ToYAML. A bare turn (no envelope) is accepted too.
func FromYAML(b []byte) (*turns.Turn, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "decode turn yaml")
	}
	if doc.Version > FormatVersion {
		return nil, errors.Errorf("unsupported turn document version %d", doc.Version)
	}
	t := doc.Turn
	if t == nil {
		t = &turns.Turn{}
		if err := yaml.Unmarshal(b, t); err != nil {
			return nil, errors.Wrap(err, "decode turn yaml")
		}
	}
	normalize(t)
	return t, nil
}

func SaveTurnYAML(path string, t *turns.Turn, opt Options) error {
	data, err := ToYAML(t, opt)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write turn %s", path)
}

func LoadTurnYAML(path string) (*turns.Turn, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read turn %s", path)
	}
	return FromYAML(b)
}
