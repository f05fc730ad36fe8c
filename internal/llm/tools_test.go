package llm

import "testing"

func TestToolDefinitionsIncludesWriteCapableTools(t *testing.T) {
	names := map[string]bool{}
	for _, tool := range ToolDefinitions() {
		names[tool.OfTool.Name] = true
	}
	for _, want := range []string{"Read", "Write", "Edit", "Bash", "Glob", "Grep"} {
		if !names[want] {
			t.Errorf("ToolDefinitions missing %q", want)
		}
	}
}

func TestReadOnlyToolDefinitionsExcludesMutation(t *testing.T) {
	for _, tool := range ReadOnlyToolDefinitions() {
		switch tool.OfTool.Name {
		case "Write", "Edit", "Bash":
			t.Errorf("ReadOnlyToolDefinitions must not include %q", tool.OfTool.Name)
		}
	}
	names := map[string]bool{}
	for _, tool := range ReadOnlyToolDefinitions() {
		names[tool.OfTool.Name] = true
	}
	for _, want := range []string{"Read", "Glob", "Grep"} {
		if !names[want] {
			t.Errorf("ReadOnlyToolDefinitions missing %q", want)
		}
	}
}
