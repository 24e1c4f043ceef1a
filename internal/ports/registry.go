package ports

import (
	"github.com/eleven-am/loom/internal/domain"
)

// TemplateRegistry resolves node types to their templates. Registration
// happens at startup; Resolve is called on the engine's hot path and must
// be safe for concurrent use.
type TemplateRegistry interface {
	Register(template domain.NodeTemplate) error
	Resolve(nodeType string) (domain.NodeTemplate, error)
	Types() []string
}

type TemplateRegistrationError struct {
	TemplateType string
	Reason       string
}

func (e *TemplateRegistrationError) Error() string {
	return "template registration failed for '" + e.TemplateType + "': " + e.Reason
}
