package memory

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/eleven-am/loom/internal/domain"
	"github.com/eleven-am/loom/internal/ports"
)

// TemplateRegistry is the in-memory ports.TemplateRegistry used by the
// engine. It is populated at startup and read concurrently afterwards.
type TemplateRegistry struct {
	templates map[string]domain.NodeTemplate
	mu        sync.RWMutex
	logger    *slog.Logger
}

func NewTemplateRegistry(logger *slog.Logger) *TemplateRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	return &TemplateRegistry{
		templates: make(map[string]domain.NodeTemplate),
		logger:    logger.With("component", "template_registry"),
	}
}

func (r *TemplateRegistry) Register(template domain.NodeTemplate) error {
	if template.Type == "" {
		return &ports.TemplateRegistrationError{
			TemplateType: "<empty>",
			Reason:       "template type cannot be empty",
		}
	}
	if template.Executor == nil {
		return &ports.TemplateRegistrationError{
			TemplateType: template.Type,
			Reason:       "template executor cannot be nil",
		}
	}
	if reason, ok := duplicatePortID(template.Inputs); ok {
		return &ports.TemplateRegistrationError{
			TemplateType: template.Type,
			Reason:       "duplicate input port id: " + reason,
		}
	}
	if reason, ok := duplicatePortID(template.Outputs); ok {
		return &ports.TemplateRegistrationError{
			TemplateType: template.Type,
			Reason:       "duplicate output port id: " + reason,
		}
	}
	if template.Condition && len(template.Outputs) < 2 {
		return &ports.TemplateRegistrationError{
			TemplateType: template.Type,
			Reason:       "condition template must declare at least two output ports",
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[template.Type]; exists {
		r.logger.Warn("template registration conflict detected", "type", template.Type)
		return &ports.TemplateRegistrationError{
			TemplateType: template.Type,
			Reason:       "template type already registered",
		}
	}

	r.templates[template.Type] = template
	r.logger.Debug("template registered",
		"type", template.Type,
		"inputs", len(template.Inputs),
		"outputs", len(template.Outputs),
		"condition", template.Condition,
	)

	return nil
}

func (r *TemplateRegistry) Resolve(nodeType string) (domain.NodeTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	template, exists := r.templates[nodeType]
	if !exists {
		return domain.NodeTemplate{}, domain.NewValidationError(
			domain.ValidationUnknownTemplate, "", "",
			"no template registered for node type: "+nodeType)
	}

	return template, nil
}

func (r *TemplateRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.templates))
	for t := range r.templates {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}

func duplicatePortID(ports []domain.Port) (string, bool) {
	seen := make(map[string]struct{}, len(ports))
	for _, p := range ports {
		if _, exists := seen[p.ID]; exists {
			return p.ID, true
		}
		seen[p.ID] = struct{}{}
	}
	return "", false
}
