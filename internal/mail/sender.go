// Package mail dispatches follow-up emails after a call ends. The core
// only depends on the Sender interface; delivery failures surface in the
// finalization result, never back into the call.
package mail

import "context"

// Template names the message body to render.
type Template string

const (
	// TemplateFollowUp is sent after a call where the customer stayed with
	// the original product.
	TemplateFollowUp Template = "followup"

	// TemplateAlternatives is sent when the customer asked to hear about
	// alternative products.
	TemplateAlternatives Template = "alternatives"
)

// Data fills the template placeholders.
type Data struct {
	Name    string
	Product string
}

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, to string, tmpl Template, data Data) error
}

// Noop discards messages; used when no SMTP endpoint is configured.
type Noop struct{}

func (Noop) Send(ctx context.Context, to string, tmpl Template, data Data) error {
	return nil
}
