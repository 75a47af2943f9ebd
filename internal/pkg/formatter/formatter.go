package formatter

import (
	"fmt"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

// Formatter renders a conversation transcript into an exportable document.
type Formatter interface {
	Format(title string, messages []*entity.Message) ([]byte, error)
	ContentType() string
	FileExtension() string
}

// ForFormat returns the formatter for a format name ("pdf" or "markdown").
func ForFormat(format string) (Formatter, error) {
	switch format {
	case "pdf":
		return NewPDFFormatter(), nil
	case "markdown", "md":
		return NewMarkdownFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

func roleHeading(role entity.MessageRole) string {
	switch role {
	case entity.MessageRoleUser:
		return "User"
	case entity.MessageRoleAssistant:
		return "Assistant"
	default:
		return string(role)
	}
}
