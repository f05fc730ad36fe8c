package worker

import "strings"

// analyzePrompt builds the user turn for the Analyze phase (spec §4.F step
// 1): explore the target files and their dependencies.
func analyzePrompt(in Input) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(in.Task.Name)
	b.WriteString("\n\n")
	b.WriteString(in.Task.Description)
	b.WriteString("\n\n")
	if in.Brief != "" {
		b.WriteString("Brief:\n")
		b.WriteString(in.Brief)
		b.WriteString("\n\n")
	}
	if len(in.TargetFiles) > 0 {
		b.WriteString("Target files:\n")
		for _, f := range in.TargetFiles {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(in.Constraints) > 0 {
		b.WriteString("Constraints:\n")
		for _, c := range in.Constraints {
			b.WriteString("- ")
			b.WriteString(c)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Explore the target files and anything they depend on, then summarize what you found.")
	return b.String()
}

// decidePrompt builds the user turn for the Decide phase (spec §4.F step 2):
// given the analysis, ask for a structured execution strategy.
func decidePrompt(in Input, analysis string) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(in.Task.Name)
	b.WriteString("\n\n")
	b.WriteString("Analysis from exploring the codebase:\n")
	b.WriteString(analysis)
	b.WriteString("\n\nDecide how to execute this task and respond with the JSON object only.")
	return b.String()
}

// executePrompt builds the user turn for the Execute phase (spec §4.F step
// 3): implement the task per the chosen strategy.
func executePrompt(in Input, analysis string, strat strategy) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(in.Task.Name)
	b.WriteString("\n\n")
	b.WriteString(in.Task.Description)
	b.WriteString("\n\n")
	if in.Brief != "" {
		b.WriteString("Brief:\n")
		b.WriteString(in.Brief)
		b.WriteString("\n\n")
	}
	b.WriteString("Analysis:\n")
	b.WriteString(analysis)
	b.WriteString("\n\n")
	if len(strat.Steps) > 0 {
		b.WriteString("Planned steps:\n")
		for _, s := range strat.Steps {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if strat.ShouldWriteTests {
		b.WriteString("Write tests for this change. ")
		if strat.TestReason != "" {
			b.WriteString(strat.TestReason)
		}
		b.WriteString("\n\n")
	}
	b.WriteString("Make the changes now. Finish your final message with a one-line summary suitable for a commit subject.")
	return b.String()
}
