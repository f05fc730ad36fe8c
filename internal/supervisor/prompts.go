package supervisor

import (
	"fmt"
	"strings"
)

func systemPrompt() string {
	return "You are the lead engineer on a software project. You own the whole run: " +
		"explore the repository, build or refine a task plan, and for each task decide " +
		"whether to implement it yourself (using Read/Glob/Grep/Bash for exploration and " +
		"Write/Edit/Bash for changes) or dispatch it to a Worker Agent (DispatchWorker) when " +
		"it's substantial enough to isolate in its own worktree. Record every plan decision " +
		"through UpdateTaskPlan so the rest of the system sees it immediately. Keep going " +
		"until every task has reached a terminal state, then summarize what was done."
}

func userPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", in.Blueprint.Name)
	if in.Blueprint.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", in.Blueprint.Description)
	}
	fmt.Fprintf(&b, "Repository path: %s\n", in.ProjectPath)

	if len(in.Blueprint.Requirements) > 0 {
		b.WriteString("\nRequirements:\n")
		for _, r := range in.Blueprint.Requirements {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if len(in.Blueprint.Constraints) > 0 {
		b.WriteString("\nConstraints:\n")
		for _, c := range in.Blueprint.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if len(in.Blueprint.Modules) > 0 {
		b.WriteString("\nModules:\n")
		for _, m := range in.Blueprint.Modules {
			fmt.Fprintf(&b, "- %s (%s) at %s\n", m.Name, m.Type, m.RootPath)
		}
	}

	if in.Plan != nil && len(in.Plan.Tasks) > 0 {
		fmt.Fprintf(&b, "\nExisting plan has %d task(s) already:\n", len(in.Plan.Tasks))
		for _, t := range in.Plan.Tasks {
			fmt.Fprintf(&b, "- [%s] %s: %s (status=%s)\n", t.ID, t.Name, t.Description, t.Status)
		}
	} else {
		b.WriteString("\nNo existing plan. Build one from the requirements above before executing anything.\n")
	}

	return b.String()
}
