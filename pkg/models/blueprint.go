// Package models holds the shared data types passed between the coordinator,
// worktree controller, workers, and supervisor.
package models

// Blueprint is the confirmed product of requirement elicitation. It is
// immutable once confirmed; nothing in this module mutates a Blueprint after
// construction.
type Blueprint struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	// ProjectPath is the absolute path to the shared git repository all
	// workers branch from.
	ProjectPath string `json:"projectPath" yaml:"projectPath"`
	// Requirements is an ordered list of natural-language statements.
	Requirements []string `json:"requirements" yaml:"requirements"`
	// TechStack maps roles (language, framework, testing, ...) to names.
	TechStack map[string]string `json:"techStack" yaml:"techStack"`
	// Constraints is a list of constraint sentences.
	Constraints []string `json:"constraints" yaml:"constraints"`
	Modules     []Module `json:"modules" yaml:"modules"`
}

// Module is a filesystem-scoped subdivision of a Blueprint.
type Module struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	// RootPath defines this module's filesystem scope, relative to the
	// blueprint's ProjectPath.
	RootPath  string   `json:"rootPath" yaml:"rootPath"`
	TechStack []string `json:"techStack,omitempty" yaml:"techStack,omitempty"`
}

// ModuleByID returns the module with the given id, if present.
func (b *Blueprint) ModuleByID(id string) (Module, bool) {
	for _, m := range b.Modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}
