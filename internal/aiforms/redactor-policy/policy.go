// Очистка пользовательского текста форм и писем.
//
// Основные возможности:
//   - PlainText удаляет всю разметку и возвращает обычный текст (ответы, заголовки, подписи полей, текстовая часть писем).
//   - RichText оставляет безопасную разметку в описании формы и тексте автоответа.
package policy

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripTags = bluemonday.StrictPolicy()
	richText  = newRichTextPolicy()
)

func newRichTextPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.AllowURLSchemes("http", "https", "mailto")
	return p
}

// PlainText текст без разметки. Сущности HTML раскодируются, так как результат не предназначен для вставки в HTML без экранирования.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripTags.Sanitize(s)))
}

// RichText HTML, безопасный для вставки в страницу формы и письмо
func RichText(s string) string {
	return richText.Sanitize(s)
}
