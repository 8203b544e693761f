package export

import (
	"fmt"
	"time"

	"portfolio/api/internal/content"
)

// ContentSource yields the current portfolio content. The content service
// satisfies this directly.
type ContentSource interface {
	Profile() content.Profile
	ResearchInterests() []content.ResearchInterest
	TeachingInterests() []content.TeachingInterest
	Publications() []content.Publication
	Talks() []content.Talk
	Activities() []content.Activity
	Lab() content.Lab
}

// Service renders the portfolio content as a CV.
type Service struct {
	source ContentSource
}

// NewService creates an export service.
func NewService(source ContentSource) *Service {
	return &Service{source: source}
}

// ExportCV renders the current content to HTML and converts it to PDF.
func (s *Service) ExportCV() (*Result, error) {
	data := TemplateData{
		Profile:      s.source.Profile(),
		Research:     s.source.ResearchInterests(),
		Teaching:     s.source.TeachingInterests(),
		Publications: s.source.Publications(),
		Talks:        s.source.Talks(),
		Activities:   s.source.Activities(),
		Lab:          s.source.Lab(),
		GeneratedAt:  time.Now(),
	}

	html, err := RenderCVHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	title := data.Profile.Name + " CV"
	return renderPDF(html, title)
}
