package dedup

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"tg-monitor-bot/internal/domain"
)

// Fingerprint строит ключ дедупликации `chatId:messageId`. Для сообщений без id
// используется хэш нормализованного текста. Правки сообщения получают тот же
// ключ, что и оригинал.
func Fingerprint(msg domain.Message) string {
	chat := domain.NormalizeID(msg.Chat.ID)
	if msg.ID == 0 {
		return chat + ":h:" + ContentHash(msg.Text)
	}
	return chat + ":" + strconv.Itoa(msg.ID)
}

// ContentHash возвращает короткий хэш текста без учёта регистра и пробелов по краям.
func ContentHash(text string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:8])
}
