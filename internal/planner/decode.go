package planner

import "github.com/idle-engine/idle/pkg/schema"

// decodeWorkflow maps an already shape-validated document onto the typed
// workflow model. Unknown keys cannot appear here; the structural pass is
// closed-world.
func decodeWorkflow(doc map[string]any) *schema.Workflow {
	wf := &schema.Workflow{
		Name:           stringField(doc, "Name"),
		LifecycleEvent: stringField(doc, "LifecycleEvent"),
	}
	wf.Steps = decodeSteps(doc["Steps"])
	wf.OnFailureSteps = decodeSteps(doc["OnFailureSteps"])
	return wf
}

func decodeSteps(v any) []schema.StepDefinition {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	steps := make([]schema.StepDefinition, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		step := schema.StepDefinition{
			Name:         stringField(m, "Name"),
			Type:         stringField(m, "Type"),
			Description:  stringField(m, "Description"),
			Condition:    m["Condition"],
			RetryProfile: stringField(m, "RetryProfile"),
		}
		if with, ok := m["With"].(map[string]any); ok {
			step.With = with
		}
		steps = append(steps, step)
	}
	return steps
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
