package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"text/template"
)

var subjects = map[Template]string{
	TemplateFollowUp:     "Following up on your {{.Product}} enquiry",
	TemplateAlternatives: "Alternative options for you",
}

var bodies = map[Template]string{
	TemplateFollowUp: `Hi {{.Name}},

Thank you for taking the time to speak with us today about {{.Product}}.
As discussed, here are the details you asked for. If anything is unclear,
just reply to this email.

Best regards,
The sales team
`,
	TemplateAlternatives: `Hi {{.Name}},

Thanks for the chat today. As promised, we've put together some
alternatives to {{.Product}} that may be a better fit. Reply to this email
and we'll walk you through them.

Best regards,
The sales team
`,
}

// SMTPConfig configures the SMTP sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers rendered templates over plain SMTP.
type SMTPSender struct {
	cfg       SMTPConfig
	templates map[Template]*template.Template
	subjects  map[Template]*template.Template
	// send is swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTP parses the built-in templates and returns the sender.
func NewSMTP(cfg SMTPConfig) (*SMTPSender, error) {
	s := &SMTPSender{
		cfg:       cfg,
		templates: make(map[Template]*template.Template),
		subjects:  make(map[Template]*template.Template),
		send:      smtp.SendMail,
	}
	for name, body := range bodies {
		t, err := template.New(string(name)).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parse body template %s: %w", name, err)
		}
		s.templates[name] = t
	}
	for name, subj := range subjects {
		t, err := template.New(string(name) + "-subject").Parse(subj)
		if err != nil {
			return nil, fmt.Errorf("parse subject template %s: %w", name, err)
		}
		s.subjects[name] = t
	}
	return s, nil
}

// Send renders tmpl with data and delivers it to the recipient. The
// context deadline is honored only up to connect time; SMTP itself has the
// server's timeouts.
func (s *SMTPSender) Send(ctx context.Context, to string, tmpl Template, data Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.render(to, tmpl, data)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPSender) render(to string, tmpl Template, data Data) ([]byte, error) {
	bodyT, ok := s.templates[tmpl]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", tmpl)
	}

	var subject bytes.Buffer
	if err := s.subjects[tmpl].Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	var body bytes.Buffer
	if err := bodyT.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject.String())
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
