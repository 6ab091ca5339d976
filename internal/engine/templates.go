package engine

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"draughtsman/internal/domain"
	"draughtsman/internal/schema"
)

type notification struct {
	Subject string
	HTML    string
}

var headerSafe = strings.NewReplacer("\r", " ", "\n", " ")

type notificationRow struct {
	Label string
	Value string
}

var notificationTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>{{.Heading}}</h2>
  <p>A new {{.Noun}} was submitted on {{.Site}}.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
  {{- range .Rows}}
    <tr><th align="left" style="border-bottom: 1px solid #e5e7eb;">{{.Label}}</th><td style="border-bottom: 1px solid #e5e7eb;">{{.Value}}</td></tr>
  {{- end}}
  </table>
</body>
</html>
`))

func noun(kind domain.FormKind) string {
	switch kind {
	case domain.KindGuidance:
		return "guidance request"
	case domain.KindScheduling:
		return "booking request"
	}
	return string(kind) + " submission"
}

// renderNotification builds the operator e-mail for a stored submission.
// Values are escaped by html/template.
func renderNotification(site string, kind domain.FormKind, values map[string]string) (notification, error) {
	s, ok := schema.For(kind)
	if !ok {
		return notification{}, fmt.Errorf("no schema for %s", kind)
	}
	var rows []notificationRow
	for _, rule := range s.Rules {
		v := strings.TrimSpace(values[rule.Field])
		if v == "" {
			continue
		}
		rows = append(rows, notificationRow{Label: rule.Label, Value: v})
	}
	name := strings.TrimSpace(values["name"])
	subject := "New " + noun(kind)
	if name != "" {
		subject += " from " + name
	}
	var buf bytes.Buffer
	err := notificationTemplate.Execute(&buf, struct {
		Heading string
		Noun    string
		Site    string
		Rows    []notificationRow
	}{
		Heading: subject,
		Noun:    noun(kind),
		Site:    site,
		Rows:    rows,
	})
	if err != nil {
		return notification{}, fmt.Errorf("render %s notification: %w", kind, err)
	}
	return notification{Subject: headerSafe.Replace(subject), HTML: buf.String()}, nil
}
