package notify

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"tg-monitor-bot/internal/domain"
)

// FormatNotification формирует HTML-уведомление о совпавшем сообщении.
func FormatNotification(msg domain.Message, res domain.Classification) string {
	var sections []string

	header := "🔔 <b>" + escapeHTML(chatTitle(msg.Chat)) + "</b>"
	if sender := strings.TrimSpace(msg.SenderName); sender != "" {
		header += "\n👤 " + escapeHTML(sender)
	}
	if link := MessageLink(msg); link != "" {
		header += fmt.Sprintf("\n<a href=\"%s\">Открыть сообщение</a>", html.EscapeString(link))
	}
	sections = append(sections, header)

	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Text)
	}
	if text != "" {
		sections = append(sections, escapeHTML(text))
	}

	if block := formatPayload(res.Payload); block != "" {
		sections = append(sections, block)
	}

	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

// MessageLink возвращает ссылку на сообщение, если чат её поддерживает.
// Для обычных групп ссылок нет.
func MessageLink(msg domain.Message) string {
	if msg.ID <= 0 {
		return ""
	}
	id := strconv.Itoa(msg.ID)
	if username := strings.TrimPrefix(strings.TrimSpace(msg.Chat.Username), "@"); username != "" {
		return "https://t.me/" + username + "/" + id
	}
	if msg.Chat.Kind.IsChannelLike() {
		chat := domain.NormalizeID(msg.Chat.ID)
		if chat == "" {
			return ""
		}
		return "https://t.me/c/" + chat + "/" + id
	}
	return ""
}

func chatTitle(chat domain.Chat) string {
	if title := strings.TrimSpace(chat.Title); title != "" {
		return title
	}
	return "Чат " + domain.NormalizeID(chat.ID)
}

func formatPayload(p *domain.LotteryPayload) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	if p.Kind == domain.PayloadRedPacket {
		b.WriteString("🧧 <b>Красный конверт</b>")
	} else {
		b.WriteString("🎁 <b>Розыгрыш</b>")
	}
	line := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		b.WriteString("\n" + label + ": " + escapeHTML(value))
	}
	line("Создан", p.CreatedAt)
	line("Автор", p.Creator)
	for _, prize := range p.Prizes {
		b.WriteString(fmt.Sprintf("\n• %s × %d", escapeHTML(prize.Name), prize.Count))
	}
	line("Сумма", p.TotalAmount)
	if p.Shares > 0 {
		b.WriteString("\nДолей: " + strconv.Itoa(p.Shares))
	}
	if p.AutoDrawCount > 0 {
		b.WriteString("\nАвтоматический розыгрыш при " + strconv.Itoa(p.AutoDrawCount) + " участниках")
	}
	if kw := strings.TrimSpace(p.Keyword); kw != "" {
		b.WriteString("\nКлючевое слово: <code>" + escapeHTML(kw) + "</code>")
	}
	return b.String()
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
