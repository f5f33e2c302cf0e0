// Package planner turns a parsed workflow document plus a lifecycle request
// into an immutable, capability-validated Plan.
package planner

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/idle-engine/idle/internal/conditions"
	"github.com/idle-engine/idle/pkg/schema"
)

// workflowSchemaJSON validates the structural shape of a workflow document.
// Embedded as a constant to avoid filesystem dependencies.
const workflowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://idle.dev/schemas/workflow.json",
  "type": "object",
  "required": ["Name", "LifecycleEvent", "Steps"],
  "properties": {
    "Name": { "type": "string", "minLength": 1 },
    "LifecycleEvent": { "type": "string", "minLength": 1 },
    "Steps": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/step" }
    },
    "OnFailureSteps": {
      "type": "array",
      "items": { "$ref": "#/$defs/step" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "step": {
      "type": "object",
      "required": ["Name", "Type"],
      "properties": {
        "Name": { "type": "string", "minLength": 1 },
        "Type": { "type": "string", "minLength": 1 },
        "Description": { "type": "string" },
        "Condition": {},
        "With": { "type": "object" },
        "RetryProfile": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": false
    }
  }
}`

// workflowValidator wraps the compiled workflow schema. Safe for concurrent
// use.
type workflowValidator struct {
	compiled *jsonschema.Schema
}

func newWorkflowValidator() (*workflowValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(workflowSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal workflow schema: %w", err)
	}
	if err := c.AddResource("https://idle.dev/schemas/workflow.json", doc); err != nil {
		return nil, fmt.Errorf("add workflow schema resource: %w", err)
	}
	compiled, err := c.Compile("https://idle.dev/schemas/workflow.json")
	if err != nil {
		return nil, fmt.Errorf("compile workflow schema: %w", err)
	}
	return &workflowValidator{compiled: compiled}, nil
}

// validate runs the structural pass, collecting every schema violation.
func (v *workflowValidator) validate(doc map[string]any) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if doc == nil {
		result.AddError("/", schema.ErrCodeValidation, "workflow document is nil")
		return result
	}

	// Executable values are a security violation, not a serialization bug;
	// catch them before the JSON round-trip can mask them.
	if err := ensureDeclarative(doc); err != nil {
		result.AddError("/", schema.ErrCodeSecurity, err.Error())
		return result
	}

	jsonDoc, err := toJSONValue(doc)
	if err != nil {
		result.AddError("/", schema.ErrCodeValidation, "workflow document is not JSON-representable: "+err.Error())
		return result
	}

	if err := v.compiled.Validate(jsonDoc); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			result.AddError("/", schema.ErrCodeValidation, err.Error())
			return result
		}
		for _, violation := range collectViolations(verr) {
			result.AddError(violation.path, schema.ErrCodeValidation, violation.message)
		}
	}
	return result
}

type violation struct {
	path    string
	message string
}

// collectViolations walks a ValidationError tree and collects leaf messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []violation {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []violation{{path: loc, message: verr.Error()}}
	}
	var out []violation
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}

// toJSONValue round-trips a Go value through JSON encoding so numbers become
// json.Number, which the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// validateSemantics runs the checks JSON Schema cannot express: unique step
// names (case-insensitive, per list), declarative-only content, and condition
// schema validity. All violations are collected.
func validateSemantics(wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	checkList := func(steps []schema.StepDefinition, listPath string) {
		seen := make(map[string]string, len(steps))
		for i, step := range steps {
			path := fmt.Sprintf("%s/%d", listPath, i)
			lower := strings.ToLower(step.Name)
			if first, dup := seen[lower]; dup {
				result.AddError(path, schema.ErrCodeValidation,
					fmt.Sprintf("duplicate step name %q (conflicts with %q)", step.Name, first))
			} else {
				seen[lower] = step.Name
			}

			if step.Condition != nil {
				condResult := conditions.ValidateSchema(step.Condition)
				for _, issue := range condResult.Errors {
					result.AddError(path+"/Condition"+issue.Path, issue.Code, issue.Message)
				}
			}
			if err := ensureDeclarative(step.With); err != nil {
				result.AddError(path+"/With", schema.ErrCodeSecurity, err.Error())
			}
			if err := ensureDeclarative(step.Condition); err != nil {
				result.AddError(path+"/Condition", schema.ErrCodeSecurity, err.Error())
			}
		}
	}

	checkList(wf.Steps, "/Steps")
	checkList(wf.OnFailureSteps, "/OnFailureSteps")
	return result
}

// ensureDeclarative rejects executable values anywhere in workflow content.
// Workflows are pure data; a closure smuggled into a parsed document is a
// security error regardless of where it hides.
func ensureDeclarative(v any) error {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, int, int64, float64, json.Number:
		return nil
	case map[string]any:
		for _, el := range t {
			if err := ensureDeclarative(el); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, el := range t {
			if err := ensureDeclarative(el); err != nil {
				return err
			}
		}
		return nil
	default:
		switch reflect.TypeOf(v).Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return schema.NewErrorf(schema.ErrCodeSecurity,
				"workflow content must be declarative data, found executable value of type %T", v)
		}
		return nil
	}
}
