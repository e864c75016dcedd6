// Package notify composes the platform's transactional emails and hands
// them to a mailer.Sender.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/pkg/mailer"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tmplVerification    = "verification"
	tmplApproval        = "approval"
	tmplPasswordReset   = "password_reset"
	tmplFeedbackRequest = "feedback_request"
)

// Config holds links and addresses used in emails
type Config struct {
	FrontendURL string
	ReplyTo     string
	// Human-readable validity windows shown in the emails
	VerificationExpiresIn string
	ResetExpiresIn        string
}

type emailData struct {
	Name           string
	ActionURL      string
	ActionLabel    string
	ExpiresIn      string
	OtherPartyName string
}

// Notifier sends lifecycle and feedback emails
type Notifier struct {
	sender    mailer.Sender
	cfg       Config
	templates map[string]*template.Template
}

// New parses the embedded templates and returns a Notifier
func New(sender mailer.Sender, cfg Config) (*Notifier, error) {
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	if cfg.VerificationExpiresIn == "" {
		cfg.VerificationExpiresIn = "24 horas"
	}
	if cfg.ResetExpiresIn == "" {
		cfg.ResetExpiresIn = "1 hora"
	}

	templates := make(map[string]*template.Template)
	for _, name := range []string{tmplVerification, tmplApproval, tmplPasswordReset, tmplFeedbackRequest} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		templates[name] = t
	}

	return &Notifier{sender: sender, cfg: cfg, templates: templates}, nil
}

func (n *Notifier) link(path, token string) string {
	return n.cfg.FrontendURL + path + "?token=" + url.QueryEscape(token)
}

func (n *Notifier) send(ctx context.Context, name, to, subject string, data emailData) error {
	var buf bytes.Buffer
	if err := n.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s email: %w", name, err)
	}

	_, err := n.sender.Send(ctx, mailer.Message{
		To:      []string{to},
		Subject: subject,
		HTML:    buf.String(),
		ReplyTo: n.cfg.ReplyTo,
		Tag:     name,
	})
	return err
}

func displayName(name, email string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	if local, _, ok := strings.Cut(email, "@"); ok {
		return local
	}
	return email
}

// SendVerification emails the email-confirmation link
func (n *Notifier) SendVerification(ctx context.Context, to, name, token string) error {
	return n.send(ctx, tmplVerification, to, "Centro de Carreiras - Verifique seu email", emailData{
		Name:        displayName(name, to),
		ActionURL:   n.link("/auth/verify-email", token),
		ActionLabel: "Verificar Email",
		ExpiresIn:   n.cfg.VerificationExpiresIn,
	})
}

// SendApprovalConfirmation tells the user an admin approved the account
func (n *Notifier) SendApprovalConfirmation(ctx context.Context, to, name string) error {
	return n.send(ctx, tmplApproval, to, "Centro de Carreiras - Sua conta foi aprovada!", emailData{
		Name:        displayName(name, to),
		ActionURL:   n.cfg.FrontendURL + "/auth",
		ActionLabel: "Acessar o Centro de Carreiras",
	})
}

// SendPasswordReset emails the password reset link
func (n *Notifier) SendPasswordReset(ctx context.Context, to, name, token string) error {
	return n.send(ctx, tmplPasswordReset, to, "Fundo Patronos - Redefina sua senha do Centro de Carreiras", emailData{
		Name:        displayName(name, to),
		ActionURL:   n.link("/auth/reset-password", token),
		ActionLabel: "Redefinir Senha",
		ExpiresIn:   n.cfg.ResetExpiresIn,
	})
}

// SendFeedbackRequest emails the feedback form link to one side of a session
func (n *Notifier) SendFeedbackRequest(ctx context.Context, req *models.FeedbackRequest, otherPartyName string) error {
	return n.send(ctx, tmplFeedbackRequest, req.RecipientEmail,
		fmt.Sprintf("Centro de Carreiras - Como foi sua mentoria com %s?", otherPartyName),
		emailData{
			Name:           displayName(req.RecipientName, req.RecipientEmail),
			ActionURL:      n.link("/feedback", req.Token),
			ActionLabel:    "Responder Feedback",
			OtherPartyName: otherPartyName,
		})
}
