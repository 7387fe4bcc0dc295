// internal/template/registry.go
package template

import (
	appErrors "github.com/brightline/outreach-backend/internal/errors"
)

// Well-known prompt template ids.
const (
	InitialContactID = "initial-contact"
	FollowUpID       = "follow-up"
)

// Template is a prompt template handed to the generation API as the system
// message after variable substitution.
type Template struct {
	ID   string
	Name string
	Text string
}

// Registry is an immutable prompt-template lookup table. It is built once at
// startup; adding a template produces a new Registry, so concurrent workers
// never observe a partial write.
type Registry struct {
	templates map[string]Template
}

func NewRegistry(templates ...Template) *Registry {
	m := make(map[string]Template, len(templates))
	for _, t := range templates {
		m[t.ID] = t
	}
	return &Registry{templates: m}
}

// Defaults returns the registry with the built-in outreach templates.
func Defaults() *Registry {
	return NewRegistry(
		Template{
			ID:   InitialContactID,
			Name: "Initial Contact",
			Text: "You are a helpful sales assistant.\n" +
				"Your goal is to engage with {{name}} about {{product}}.\n" +
				"Campaign message: {{message}}\n\n" +
				"Generate a friendly, professional message.",
		},
		Template{
			ID:   FollowUpID,
			Name: "Follow-up Message",
			Text: "You are following up with {{name}}.\n" +
				"Campaign message: {{message}}\n\n" +
				"Generate a natural follow-up message that continues the conversation.",
		},
	)
}

// Lookup returns the template with the given id.
func (r *Registry) Lookup(id string) (Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return Template{}, appErrors.NewTemplateNotFound(id)
	}
	return t, nil
}

// WithTemplate returns a copy of the registry that also contains t. The
// receiver is left unchanged.
func (r *Registry) WithTemplate(t Template) *Registry {
	m := make(map[string]Template, len(r.templates)+1)
	for id, existing := range r.templates {
		m[id] = existing
	}
	m[t.ID] = t
	return &Registry{templates: m}
}

// All returns every registered template.
func (r *Registry) All() []Template {
	out := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	return out
}
