package tools

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ToolDefinition is a tool as the model sees it plus the Go function behind it.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	Function    ToolFunc           `json:"-"`
}

// ToolFunc calls a Go function with JSON-encoded arguments.
type ToolFunc struct {
	fn       reflect.Value
	input    reflect.Type // nil for functions without an input struct
	takesCtx bool
}

type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ToolResult struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Result   interface{}   `json:"result"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	// Skipped means no handler ran, for instance because the tool is unknown.
	Skipped bool `json:"skipped,omitempty"`
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// NewToolFromFunc wraps fn, which must look like one of
//
//	func() R
//	func(context.Context) R
//	func(Input) R
//	func(context.Context, Input) R
//
// where R may also be (R, error). The parameter schema is reflected from Input.
func NewToolFromFunc(name, description string, fn interface{}) (*ToolDefinition, error) {
	ft := reflect.TypeOf(fn)
	if ft == nil || ft.Kind() != reflect.Func {
		return nil, errors.Errorf("tool %s: %T is not a function", name, fn)
	}
	switch ft.NumOut() {
	case 1:
	case 2:
		if !ft.Out(1).Implements(errorType) {
			return nil, errors.Errorf("tool %s: second result must be an error", name)
		}
	default:
		return nil, errors.Errorf("tool %s: must return R or (R, error)", name)
	}

	tf := ToolFunc{fn: reflect.ValueOf(fn)}
	params := ft.NumIn()
	if params > 0 && ft.In(0) == contextType {
		tf.takesCtx = true
		params--
	}
	switch {
	case params == 1:
		tf.input = ft.In(ft.NumIn() - 1)
	case params > 1:
		return nil, errors.Errorf("tool %s: parameters must be (Input) or (context.Context, Input)", name)
	}

	return &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schemaFor(tf.input),
		Function:    tf,
	}, nil
}

// schemaFor reflects t inline, without $refs. Providers want an object at the root.
func schemaFor(t reflect.Type) *jsonschema.Schema {
	if t == nil {
		return &jsonschema.Schema{Type: "object"}
	}
	r := jsonschema.Reflector{DoNotReference: true}
	s := r.ReflectFromType(t)
	if s.Type == "" && s.Ref == "" {
		s.Type = "object"
	}
	return s
}

func (tf *ToolFunc) Execute(args []byte) (interface{}, error) {
	return tf.ExecuteWithContext(context.Background(), args)
}

// ExecuteWithContext decodes args into the input struct and calls the function,
// handing it ctx when it asks for one. Empty or "null" args leave the input zero.
func (tf *ToolFunc) ExecuteWithContext(ctx context.Context, args []byte) (interface{}, error) {
	if !tf.fn.IsValid() {
		return nil, errors.New("tool function not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var in []reflect.Value
	if tf.takesCtx {
		in = append(in, reflect.ValueOf(ctx))
	}
	if tf.input != nil {
		v := reflect.New(tf.input)
		if len(args) > 0 && string(args) != "null" {
			if err := json.Unmarshal(args, v.Interface()); err != nil {
				log.Debug().Err(err).Str("input_type", tf.input.String()).Str("args", string(args)).Msg("tools: bad arguments")
				return nil, errors.Wrap(err, "failed to unmarshal arguments")
			}
		}
		in = append(in, v.Elem())
	}

	out := tf.fn.Call(in)
	if len(out) == 2 {
		if err, _ := out[1].Interface().(error); err != nil {
			return out[0].Interface(), err
		}
	}
	return out[0].Interface(), nil
}
