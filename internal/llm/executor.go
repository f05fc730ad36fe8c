package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ToolResult is what a tool invocation reports back to the conversation.
type ToolResult struct {
	Content string
	IsError bool
}

// Executor runs a named tool call against a working directory and returns
// its result. The Worker Agent wraps an Executor with boundary-checker
// gating before handing it to a Loop (spec §4.F step 3); the Lead Agent
// Supervisor uses one unwrapped, since lead writes are always allowed.
type Executor interface {
	Execute(ctx context.Context, name string, input json.RawMessage) ToolResult
}

// ToolExecutor implements Executor against a real filesystem rooted at a
// working directory — ordinarily a worker's worktree or the project root.
type ToolExecutor struct {
	workDir string
}

// NewToolExecutor returns a ToolExecutor rooted at workDir.
func NewToolExecutor(workDir string) *ToolExecutor {
	return &ToolExecutor{workDir: workDir}
}

// Execute dispatches name to the matching exec* method.
func (e *ToolExecutor) Execute(ctx context.Context, name string, input json.RawMessage) ToolResult {
	switch name {
	case "Read":
		return e.execRead(input)
	case "Write":
		return e.execWrite(input)
	case "Edit":
		return e.execEdit(input)
	case "Bash":
		return e.execBash(ctx, input)
	case "Glob":
		return e.execGlob(input)
	case "Grep":
		return e.execGrep(ctx, input)
	default:
		return ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}
	}
}

func (e *ToolExecutor) execRead(input json.RawMessage) ToolResult {
	var params struct {
		FilePath string `json:"file_path"`
		Offset   int    `json:"offset"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return ToolResult{Content: fmt.Sprintf("invalid parameters: %v", err), IsError: true}
	}

	path := e.resolvePath(params.FilePath)
	content, err := os.ReadFile(path)
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("failed to read file: %v", err), IsError: true}
	}

	lines := strings.Split(string(content), "\n")

	start := 0
	if params.Offset > 0 {
		start = params.Offset - 1
		if start >= len(lines) {
			return ToolResult{Content: "offset beyond end of file", IsError: true}
		}
	}
	end := len(lines)
	if params.Limit > 0 {
		end = min(start+params.Limit, len(lines))
	}

	var result strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&result, "%6d\t%s\n", i+1, lines[i])
	}
	return ToolResult{Content: result.String()}
}

func (e *ToolExecutor) execWrite(input json.RawMessage) ToolResult {
	var params struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return ToolResult{Content: fmt.Sprintf("invalid parameters: %v", err), IsError: true}
	}

	path := e.resolvePath(params.FilePath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ToolResult{Content: fmt.Sprintf("failed to create directory: %v", err), IsError: true}
	}
	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return ToolResult{Content: fmt.Sprintf("failed to write file: %v", err), IsError: true}
	}
	return ToolResult{Content: fmt.Sprintf("wrote %d bytes to %s", len(params.Content), params.FilePath)}
}

func (e *ToolExecutor) execEdit(input json.RawMessage) ToolResult {
	var params struct {
		FilePath   string `json:"file_path"`
		OldString  string `json:"old_string"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return ToolResult{Content: fmt.Sprintf("invalid parameters: %v", err), IsError: true}
	}

	path := e.resolvePath(params.FilePath)
	content, err := os.ReadFile(path)
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("failed to read file: %v", err), IsError: true}
	}
	contentStr := string(content)

	count := strings.Count(contentStr, params.OldString)
	if count == 0 {
		return ToolResult{Content: "old_string not found in file", IsError: true}
	}
	if !params.ReplaceAll && count > 1 {
		return ToolResult{
			Content: fmt.Sprintf("old_string found %d times; must be unique or use replace_all=true", count),
			IsError: true,
		}
	}

	var newContent string
	if params.ReplaceAll {
		newContent = strings.ReplaceAll(contentStr, params.OldString, params.NewString)
	} else {
		newContent = strings.Replace(contentStr, params.OldString, params.NewString, 1)
	}
	if err := os.WriteFile(path, []byte(newContent), 0o644); err != nil {
		return ToolResult{Content: fmt.Sprintf("failed to write file: %v", err), IsError: true}
	}
	if params.ReplaceAll {
		return ToolResult{Content: fmt.Sprintf("replaced %d occurrences", count)}
	}
	return ToolResult{Content: "edit successful"}
}

func (e *ToolExecutor) execBash(ctx context.Context, input json.RawMessage) ToolResult {
	var params struct {
		Command string `json:"command"`
		Timeout int    `json:"timeout"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return ToolResult{Content: fmt.Sprintf("invalid parameters: %v", err), IsError: true}
	}

	timeout := 120 * time.Second
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", params.Command)
	cmd.Dir = e.workDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ToolResult{Content: fmt.Sprintf("command timed out after %v:\n%s", timeout, output), IsError: true}
		}
		return ToolResult{Content: fmt.Sprintf("%s\nerror: %v", output, err), IsError: true}
	}

	result := string(output)
	if len(result) > 30000 {
		result = result[:30000] + "\n... (output truncated)"
	}
	return ToolResult{Content: result}
}

func (e *ToolExecutor) execGlob(input json.RawMessage) ToolResult {
	var params struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return ToolResult{Content: fmt.Sprintf("invalid parameters: %v", err), IsError: true}
	}

	searchPath := e.workDir
	if params.Path != "" {
		searchPath = e.resolvePath(params.Path)
	}

	var matches []string
	_ = filepath.WalkDir(searchPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
				return filepath.SkipDir
			}
			return nil
		}
		if matched, _ := filepath.Match(filepath.Base(params.Pattern), d.Name()); matched {
			if rel, err := filepath.Rel(searchPath, path); err == nil {
				matches = append(matches, rel)
			}
		}
		return nil
	})

	if len(matches) == 0 {
		return ToolResult{Content: "no files matched the pattern"}
	}
	return ToolResult{Content: strings.Join(matches, "\n")}
}

func (e *ToolExecutor) execGrep(ctx context.Context, input json.RawMessage) ToolResult {
	var params struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Glob    string `json:"glob"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return ToolResult{Content: fmt.Sprintf("invalid parameters: %v", err), IsError: true}
	}

	args := []string{"--color=never", "-n"}
	if params.Glob != "" {
		args = append(args, "--glob", params.Glob)
	}
	args = append(args, params.Pattern)

	searchPath := e.workDir
	if params.Path != "" {
		searchPath = e.resolvePath(params.Path)
	}
	args = append(args, searchPath)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "rg", args...)
	output, _ := cmd.CombinedOutput() // rg exits non-zero on no match

	result := string(output)
	if len(result) == 0 {
		return ToolResult{Content: "no matches found"}
	}
	if len(result) > 30000 {
		result = result[:30000] + "\n... (output truncated)"
	}
	return ToolResult{Content: result}
}

func (e *ToolExecutor) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.workDir, path)
}
