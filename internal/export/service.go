package export

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"pipeline/internal/kanban"
)

// Service renders board reports in the requested format.
type Service struct {
	pdf  func(ctx context.Context, html, title string) (*Result, error)
	docx func(ctx context.Context, html, title string) (*Result, error)
}

func NewService() *Service {
	return &Service{pdf: renderPDF, docx: renderDOCX}
}

// Export builds the report for board and encodes it as format.
func (s *Service) Export(ctx context.Context, board kanban.Board, format Format, opts Options) (*Result, error) {
	report := BuildReport(board, opts)

	if format == FormatYAML {
		return renderYAML(report)
	}

	html, err := RenderBoardHTML(report)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(board.Name) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return s.pdf(ctx, html, board.Name)
	case FormatDOCX:
		return s.docx(ctx, html, board.Name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func renderYAML(report Report) (*Result, error) {
	data, err := yaml.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return &Result{
		Data:     data,
		Filename: sanitizeFilename(report.Board) + ".yaml",
		MimeType: "application/yaml",
	}, nil
}
