package notify

import (
	"bytes"
	"fmt"
	"html"
	"text/template"
)

const (
	TemplateBookingCreated    = "booking_created"
	TemplateBookingConfirmed  = "booking_confirmed"
	TemplateBookingInProgress = "booking_in_progress"
	TemplateBookingCompleted  = "booking_completed"
	TemplateBookingCancelled  = "booking_cancelled"
	TemplateProviderNewJob    = "provider_new_job"
	TemplateBookingReminder   = "booking_reminder"
)

var templates = template.Must(template.New("notify").Parse(`
{{define "booking_created"}}📝 Заявка принята
<b>{{.service}}</b>
{{.date}} в {{.time}}
Ожидайте подтверждения исполнителя.{{end}}
{{define "booking_confirmed"}}✅ Бронирование подтверждено
<b>{{.service}}</b>
{{.date}} в {{.time}}{{end}}
{{define "booking_in_progress"}}🛠 Исполнитель приступил к работе
<b>{{.service}}</b>{{end}}
{{define "booking_completed"}}🏁 Работа завершена
<b>{{.service}}</b>
Сумма: {{.amount}}
Оцените, пожалуйста, исполнителя.{{end}}
{{define "booking_cancelled"}}❌ Бронирование отменено
<b>{{.service}}</b>
{{.date}} в {{.time}}{{end}}
{{define "booking_reminder"}}⏰ Напоминание: завтра визит исполнителя
<b>{{.service}}</b>
{{.date}} в {{.time}}{{end}}
{{define "provider_new_job"}}🔔 Новый заказ
<b>{{.service}}</b>
{{.date}} в {{.time}}{{end}}
`))

// Render builds the HTML message body for templateKey. Values are escaped.
func Render(templateKey string, data map[string]string) (string, error) {
	tmpl := templates.Lookup(templateKey)
	if tmpl == nil {
		return "", fmt.Errorf("unknown notification template %q", templateKey)
	}

	escaped := make(map[string]string, len(data))
	for k, v := range data {
		escaped[k] = html.EscapeString(v)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, escaped); err != nil {
		return "", fmt.Errorf("render %s: %w", templateKey, err)
	}
	return buf.String(), nil
}
