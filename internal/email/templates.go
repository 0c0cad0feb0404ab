package email

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// TemplateKind names a transactional template in the static table.
type TemplateKind string

const (
	TemplateOTP                    TemplateKind = "otp"
	TemplateWelcome                TemplateKind = "welcome"
	TemplateEnrollmentConfirmation TemplateKind = "enrollment_confirmation"
	TemplatePaymentReceipt         TemplateKind = "payment_receipt"
	TemplateNotification           TemplateKind = "notification"
)

type templateDef struct {
	subject string
	html    string
	text    string
}

// Subject, HTML, and text parts are all Liquid sources. The table is static:
// adding a template means adding an entry here, not a database row.
var templates = map[TemplateKind]templateDef{
	TemplateOTP: {
		subject: "Your verification code",
		html: `<p>Your verification code is <strong>{{ code }}</strong>.</p>
<p>It expires in {{ minutes }} minutes. If you did not request this code, ignore this email.</p>`,
		text: `Your verification code is {{ code }}. It expires in {{ minutes }} minutes.`,
	},
	TemplateWelcome: {
		subject: "Welcome to the academy, {{ name }}",
		html: `<h1>Welcome, {{ name }}!</h1>
<p>Your account is ready. Browse the catalog and enroll in your first course whenever you like.</p>`,
		text: `Welcome, {{ name }}! Your account is ready.`,
	},
	TemplateEnrollmentConfirmation: {
		subject: "You're enrolled in {{ course }}",
		html: `<p>Hi {{ name }},</p>
<p>Your enrollment in <strong>{{ course }}</strong> is confirmed. The course is available in your dashboard now.</p>`,
		text: `Hi {{ name }}, your enrollment in {{ course }} is confirmed.`,
	},
	TemplatePaymentReceipt: {
		subject: "Receipt for {{ course }}",
		html: `<p>Hi {{ name }},</p>
<p>We received your payment of <strong>{{ amount }} {{ currency }}</strong> for {{ course }}.</p>
<p>Reference: {{ reference }}</p>`,
		text: `Hi {{ name }}, we received your payment of {{ amount }} {{ currency }} for {{ course }}. Reference: {{ reference }}.`,
	},
	TemplateNotification: {
		subject: "{{ subject }}",
		html:    `<p>{{ body }}</p>`,
		text:    `{{ body }}`,
	},
}

var (
	renderEngine = liquid.NewEngine()
	parseCache   sync.Map // map[string]*liquid.Template
)

func renderString(src string, data map[string]interface{}) (string, error) {
	if cached, ok := parseCache.Load(src); ok {
		return cached.(*liquid.Template).RenderString(data)
	}
	tpl, err := renderEngine.ParseString(src)
	if err != nil {
		return "", err
	}
	parseCache.Store(src, tpl)
	return tpl.RenderString(data)
}

// Render produces a ready-to-send Message from a template kind and its data.
func Render(kind TemplateKind, to string, data map[string]interface{}) (Message, error) {
	def, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", kind)
	}

	subject, err := renderString(def.subject, data)
	if err != nil {
		return Message{}, fmt.Errorf("subject: %w", err)
	}
	html, err := renderString(def.html, data)
	if err != nil {
		return Message{}, fmt.Errorf("html body: %w", err)
	}
	text, err := renderString(def.text, data)
	if err != nil {
		return Message{}, fmt.Errorf("text body: %w", err)
	}

	return Message{To: to, Subject: subject, HTML: html, Text: text}, nil
}

// Kinds returns the names of every registered template.
func Kinds() []string {
	out := make([]string, 0, len(templates))
	for k := range templates {
		out = append(out, string(k))
	}
	return out
}
