package formatter

import (
	"fmt"
	"strings"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

type MarkdownFormatter struct{}

func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

func (f *MarkdownFormatter) ContentType() string {
	return "text/markdown; charset=utf-8"
}

func (f *MarkdownFormatter) FileExtension() string {
	return "md"
}

func (f *MarkdownFormatter) Format(title string, messages []*entity.Message) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)

	for _, msg := range messages {
		fmt.Fprintf(&b, "## %s (%s)\n\n", roleHeading(msg.Role), msg.CreatedAt.Format("2006-01-02 15:04"))
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}

	return []byte(b.String()), nil
}
