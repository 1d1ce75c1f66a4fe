package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var boardTemplate = template.Must(
	template.New("board.html").Funcs(template.FuncMap{
		"money": FormatMoney,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"indent": func(depth int) int {
			return depth * 16
		},
	}).ParseFS(templateFS, "templates/board.html"),
)

// RenderBoardHTML renders the printable board report.
func RenderBoardHTML(report Report) (string, error) {
	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatMoney renders a value as Brazilian currency, e.g. R$ 1.234,50.
func FormatMoney(value float64) string {
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	cents := int64(value*100 + 0.5)
	whole := fmt.Sprint(cents / 100)

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), cents%100)
}
