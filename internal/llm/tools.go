package llm

import "github.com/anthropics/anthropic-sdk-go"

// ToolDefinitions returns the write-capable tool schemas offered to an
// Execute-phase conversation loop (spec §4.F step 3).
func ToolDefinitions() []anthropic.ToolUnionParam {
	return []anthropic.ToolUnionParam{
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Read",
				Description: anthropic.String("Read a file from the filesystem. Returns file contents with line numbers."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"file_path": map[string]interface{}{
							"type":        "string",
							"description": "Absolute path to the file to read",
						},
						"offset": map[string]interface{}{
							"type":        "integer",
							"description": "Line number to start reading from (1-indexed, optional)",
						},
						"limit": map[string]interface{}{
							"type":        "integer",
							"description": "Maximum number of lines to read (optional)",
						},
					},
					Required: []string{"file_path"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Write",
				Description: anthropic.String("Write content to a file. Creates parent directories if needed."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"file_path": map[string]interface{}{
							"type":        "string",
							"description": "Path to the file to write, relative to the worktree root",
						},
						"content": map[string]interface{}{
							"type":        "string",
							"description": "Content to write to the file",
						},
					},
					Required: []string{"file_path", "content"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Edit",
				Description: anthropic.String("Edit a file by replacing text. old_string must be unique unless replace_all is true."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"file_path": map[string]interface{}{
							"type":        "string",
							"description": "Path to the file to edit, relative to the worktree root",
						},
						"old_string": map[string]interface{}{
							"type":        "string",
							"description": "The exact text to find and replace",
						},
						"new_string": map[string]interface{}{
							"type":        "string",
							"description": "The text to replace it with",
						},
						"replace_all": map[string]interface{}{
							"type":        "boolean",
							"description": "If true, replace all occurrences (default: false)",
						},
					},
					Required: []string{"file_path", "old_string", "new_string"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Bash",
				Description: anthropic.String("Execute a bash command inside the worktree and return its output."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"command": map[string]interface{}{
							"type":        "string",
							"description": "The bash command to execute",
						},
						"timeout": map[string]interface{}{
							"type":        "integer",
							"description": "Timeout in milliseconds (optional, default 120000)",
						},
					},
					Required: []string{"command"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Glob",
				Description: anthropic.String("Find files matching a glob pattern."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"pattern": map[string]interface{}{
							"type":        "string",
							"description": "Glob pattern to match (e.g., '**/*.go')",
						},
						"path": map[string]interface{}{
							"type":        "string",
							"description": "Directory to search in (optional, defaults to the worktree root)",
						},
					},
					Required: []string{"pattern"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Grep",
				Description: anthropic.String("Search file contents using a regex pattern."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"pattern": map[string]interface{}{
							"type":        "string",
							"description": "Regex pattern to search for",
						},
						"path": map[string]interface{}{
							"type":        "string",
							"description": "File or directory to search in (optional)",
						},
						"glob": map[string]interface{}{
							"type":        "string",
							"description": "Glob pattern to filter files (e.g., '*.go')",
						},
					},
					Required: []string{"pattern"},
				},
			},
		},
	}
}

// ReadOnlyToolDefinitions returns the read-only subset offered to the
// Analyze-phase conversation loop (spec §4.F step 1): file reads, globs,
// greps, nothing that mutates the worktree.
func ReadOnlyToolDefinitions() []anthropic.ToolUnionParam {
	return []anthropic.ToolUnionParam{
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Read",
				Description: anthropic.String("Read a file from the filesystem."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"file_path": map[string]interface{}{
							"type":        "string",
							"description": "Absolute or worktree-relative path to the file to read",
						},
					},
					Required: []string{"file_path"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Glob",
				Description: anthropic.String("Find files matching a glob pattern."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"pattern": map[string]interface{}{
							"type":        "string",
							"description": "Glob pattern to match",
						},
					},
					Required: []string{"pattern"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Grep",
				Description: anthropic.String("Search file contents using regex."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"pattern": map[string]interface{}{
							"type":        "string",
							"description": "Regex pattern to search for",
						},
						"path": map[string]interface{}{
							"type":        "string",
							"description": "Path to search in",
						},
					},
					Required: []string{"pattern"},
				},
			},
		},
	}
}
