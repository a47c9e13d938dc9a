package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

var templateSources = map[Kind]string{
	KindBookingCreated: "📝 <b>Новая запись</b>\n\n" +
		"📅 {{.start}} ({{.duration}})\n" +
		"💰 {{.price}}\n\n" +
		"Занятие будет подтверждено после оплаты.",
	KindSessionConfirmed: "✅ <b>Занятие подтверждено</b>\n\n" +
		"📅 {{.start}} ({{.duration}})\n" +
		"💰 {{.price}}\n" +
		"🆔 #{{.session_id}}",
	KindSessionCancelled: "❌ <b>Занятие отменено</b>\n\n" +
		"📅 {{.start}}\n" +
		"{{if .reason}}💬 Причина: {{.reason}}\n{{end}}" +
		"{{if .refunded}}💸 Оплата будет возвращена.{{end}}",
	KindSessionNoShow: "⚠️ <b>Занятие не состоялось</b>\n\n" +
		"📅 {{.start}}\n" +
		"Коуч не начал занятие вовремя.",
	KindReminder24h: "⏰ <b>Напоминание</b>\n\n" +
		"Занятие завтра: {{.start}} ({{.duration}}).",
	KindReminder1h: "⏰ <b>Скоро занятие</b>\n\n" +
		"Начало через час: {{.time_range}}.",
	KindReviewRequest: "⭐ <b>Как прошло занятие?</b>\n\n" +
		"Занятие {{.start}} завершено. Оставьте отзыв, это помогает коучам.",
	KindRefundFailed: "⚠️ <b>Возврат не прошёл</b>\n\n" +
		"Занятие #{{.session_id}} отменено, но вернуть {{.price}} автоматически не удалось. " +
		"Мы разберёмся вручную.",
}

var templates = func() map[Kind]*template.Template {
	out := make(map[Kind]*template.Template, len(templateSources))
	for kind, src := range templateSources {
		out[kind] = template.Must(template.New(string(kind)).Option("missingkey=zero").Parse(src))
	}
	return out
}()

// Kinds все известные типы уведомлений
func Kinds() []Kind {
	out := make([]Kind, 0, len(templateSources))
	for kind := range templateSources {
		out = append(out, kind)
	}
	return out
}

// Render подставляет params в шаблон уведомления
func Render(kind Kind, params Params) (string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", fmt.Errorf("unknown notification kind %q", kind)
	}

	data := map[string]string(params)
	if data == nil {
		data = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	return buf.String(), nil
}
