package notify

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Accent colors per notification type.
const (
	AccentError   = "#ef4444"
	AccentWarning = "#f59e0b"
	AccentInfo    = "#3b82f6"
	AccentDefault = "#10b981"
)

var emailTemplate = template.Must(template.New("email").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: linear-gradient(135deg, #0f1823 0%, #1a2332 100%); padding: 20px; border-radius: 8px 8px 0 0;">
    <h1 style="color: #06b6d4; margin: 0;">AutomataNexusBms Controller Alert</h1>
  </div>
  <div style="background: #f5f5f5; padding: 20px;">
    <div style="background: white; padding: 20px; border-radius: 8px; border-left: 4px solid {{.Accent}};">
      <h2 style="color: #1e293b; margin-top: 0;">{{.Subject}}</h2>
      <p style="color: #475569; line-height: 1.6;">{{.Message}}</p>
      <hr style="border: none; border-top: 1px solid #e2e8f0; margin: 20px 0;">
      <p style="color: #94a3b8; font-size: 12px;">
        Controller: {{.Serial}}<br>
        Location: {{.Location}}<br>
        Timestamp: {{.Timestamp}}
      </p>
    </div>
  </div>
  <div style="background: #1a2332; color: #64748b; padding: 15px; text-align: center; font-size: 12px;">
    &copy; 2024 AutomataNexus, LLC. All rights reserved.
  </div>
</div>
`))

// policy lets simple formatting in the message survive while stripping
// scripts and event handlers.
var policy = bluemonday.UGCPolicy()

type emailView struct {
	Accent    template.CSS
	Subject   string
	Message   template.HTML
	Serial    string
	Location  string
	Timestamp string
}

// accentFor maps a notification type to its border color.
func accentFor(kind string) string {
	switch strings.ToLower(kind) {
	case TypeError:
		return AccentError
	case TypeWarning:
		return AccentWarning
	case TypeInfo:
		return AccentInfo
	default:
		return AccentDefault
	}
}

func render(n Notification, serial, location, timestamp string) (string, error) {
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, emailView{
		Accent:    template.CSS(accentFor(n.Type)),
		Subject:   n.Subject,
		Message:   template.HTML(policy.Sanitize(n.Message)),
		Serial:    serial,
		Location:  location,
		Timestamp: timestamp,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
