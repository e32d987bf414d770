// Package format — чистые функции отображения: относительное время,
// экранирование текста, усечение превью. Без состояния и без привязки к UI.
package format

import (
	"fmt"
	"html"
	"time"
)

// RelativeTime возвращает отображаемое время сообщения относительно now.
// Результат детерминирован для фиксированного now (повторный вызов без
// прошедшего времени даёт ту же строку).
func RelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		mins := int(diff / time.Minute)
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	case diff < 24*time.Hour:
		return t.Format("15:04")
	default:
		return t.Format("Jan 2")
	}
}

// Sanitize экранирует текст для безопасного показа в разметке.
func Sanitize(s string) string {
	return html.EscapeString(s)
}

// Preview усекает текст превью до max рун, добавляя многоточие.
func Preview(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
