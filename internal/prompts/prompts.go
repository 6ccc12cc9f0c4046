package prompts

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Placeholder marks where the raw question is substituted into a template
const Placeholder = "{input}"

var (
	// ErrUnknownPrompt is returned when a (subject, task) pair has no template
	ErrUnknownPrompt = errors.New("unknown subject/task combination")

	// ErrInvalidTemplate is returned when a template does not contain exactly one placeholder
	ErrInvalidTemplate = errors.New("template must contain exactly one " + Placeholder)
)

// Task is one selectable task of a subject and its prompt template
type Task struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// Subject groups tasks in display order
type Subject struct {
	Name  string `yaml:"name"`
	Tasks []Task `yaml:"tasks"`
}

// Table maps (subject, task) to a prompt template.
// A Table is immutable once built; all accessors return copies.
type Table struct {
	subjects []Subject
	index    map[string]map[string]string
}

// New validates the subjects and builds a table preserving their order
func New(subjects []Subject) (*Table, error) {
	if len(subjects) == 0 {
		return nil, errors.New("prompt table is empty")
	}

	t := &Table{
		subjects: make([]Subject, 0, len(subjects)),
		index:    make(map[string]map[string]string, len(subjects)),
	}

	for _, s := range subjects {
		if s.Name == "" {
			return nil, errors.New("subject name is required")
		}
		if _, dup := t.index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate subject %q", s.Name)
		}
		if len(s.Tasks) == 0 {
			return nil, fmt.Errorf("subject %q has no tasks", s.Name)
		}

		tasks := make(map[string]string, len(s.Tasks))
		copied := Subject{Name: s.Name, Tasks: make([]Task, 0, len(s.Tasks))}
		for _, task := range s.Tasks {
			if task.Name == "" {
				return nil, fmt.Errorf("subject %q has a task without a name", s.Name)
			}
			if _, dup := tasks[task.Name]; dup {
				return nil, fmt.Errorf("subject %q: duplicate task %q", s.Name, task.Name)
			}
			if strings.Count(task.Template, Placeholder) != 1 {
				return nil, fmt.Errorf("%s/%s: %w", s.Name, task.Name, ErrInvalidTemplate)
			}
			tasks[task.Name] = task.Template
			copied.Tasks = append(copied.Tasks, task)
		}

		t.index[s.Name] = tasks
		t.subjects = append(t.subjects, copied)
	}

	return t, nil
}

// LoadFile reads a YAML prompt table of the form
//
//	subjects:
//	  - name: Math
//	    tasks:
//	      - name: Explain
//	        template: "Explain: {input}"
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}

	var doc struct {
		Subjects []Subject `yaml:"subjects"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file: %w", err)
	}

	return New(doc.Subjects)
}

// Subjects returns the subject names in display order
func (t *Table) Subjects() []string {
	names := make([]string, 0, len(t.subjects))
	for _, s := range t.subjects {
		names = append(names, s.Name)
	}
	return names
}

// Tasks returns the task names of a subject in display order
func (t *Table) Tasks(subject string) []string {
	for _, s := range t.subjects {
		if s.Name != subject {
			continue
		}
		names := make([]string, 0, len(s.Tasks))
		for _, task := range s.Tasks {
			names = append(names, task.Name)
		}
		return names
	}
	return nil
}

// All returns a copy of the full table in display order
func (t *Table) All() []Subject {
	out := make([]Subject, 0, len(t.subjects))
	for _, s := range t.subjects {
		out = append(out, Subject{Name: s.Name, Tasks: append([]Task(nil), s.Tasks...)})
	}
	return out
}

// Has reports whether the pair exists
func (t *Table) Has(subject, task string) bool {
	_, ok := t.index[subject][task]
	return ok
}

// Render substitutes the question into the template for (subject, task).
// The question is inserted verbatim; placeholder-like text inside it is not expanded.
func (t *Table) Render(subject, task, question string) (string, error) {
	tmpl, ok := t.index[subject][task]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnknownPrompt, subject, task)
	}
	return strings.Replace(tmpl, Placeholder, question, 1), nil
}
