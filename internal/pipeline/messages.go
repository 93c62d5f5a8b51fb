package pipeline

import (
	"github.com/l0p7/admitgate/internal/admiterr"
	"github.com/l0p7/admitgate/internal/templates"
)

// MessageData is the only information a rejection template may render
// against; the full Security Context never reaches a template so a
// misconfigured operator template cannot leak internal details.
type MessageData struct {
	RequestID  string
	StatusCode int
	Reason     string
}

// MessageTemplates renders operator-configured rejection messages in
// place of the taxonomy's default Safe() string, grounded on
// internal/templates.Renderer. A reason with no configured template falls
// back to the default, and a render error falls back the same way rather
// than failing the admission it is merely describing.
type MessageTemplates struct {
	renderer *templates.Renderer
	byReason map[string]*templates.Template
	fallback *templates.Template
}

// NewMessageTemplates wraps a renderer built from the operator's sandbox
// configuration (or a nil sandbox, for inline-only templates).
func NewMessageTemplates(renderer *templates.Renderer) *MessageTemplates {
	return &MessageTemplates{renderer: renderer, byReason: make(map[string]*templates.Template)}
}

// Compile adds a template for the given taxonomy reason string (the value
// admiterr.SafeMessage returns for that error), or sets the fallback
// template when reason is "default".
func (m *MessageTemplates) Compile(reason, source string) error {
	tmpl, err := m.renderer.CompileInline(reason, source)
	if err != nil {
		return err
	}
	if tmpl == nil {
		return nil
	}
	if reason == "default" {
		m.fallback = tmpl
		return nil
	}
	m.byReason[reason] = tmpl
	return nil
}

// Render returns the message to surface for err: a rendered operator
// template if one is configured for its Safe() reason (or the fallback),
// otherwise the taxonomy's own Safe() string.
func (m *MessageTemplates) Render(err error, requestID string) string {
	reason := admiterr.SafeMessage(err)
	if m == nil {
		return reason
	}
	tmpl := m.byReason[reason]
	if tmpl == nil {
		tmpl = m.fallback
	}
	if tmpl == nil {
		return reason
	}
	rendered, rerr := tmpl.Render(MessageData{
		RequestID:  requestID,
		StatusCode: admiterr.StatusCode(err),
		Reason:     reason,
	})
	if rerr != nil {
		return reason
	}
	return rendered
}
