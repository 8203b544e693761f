package export

import (
	"strings"
	"testing"
	"time"

	"portfolio/api/internal/content"
)

func sampleData() TemplateData {
	return TemplateData{
		Profile: content.Profile{
			Name:        "Avery Lindqvist",
			Title:       "Professor of Computer Science",
			Institution: "Northfield Institute of Technology",
			Email:       "avery@example.edu",
			Education:   "PhD, Computer Science",
		},
		Research: []content.ResearchInterest{{ID: "r1", Title: "Distributed Systems"}},
		Teaching: []content.TeachingInterest{{ID: "t1", Title: "Operating Systems"}},
		Publications: []content.Publication{
			{ID: "p1", Title: "Consensus in Practice", Authors: "A. Lindqvist", Venue: "SOSP", Year: "2024"},
		},
		Talks: []content.Talk{
			{ID: "tk1", Title: "Why Consensus Is Hard", Venue: "GopherCon", Date: "2026-07-01"},
		},
		Activities: []content.Activity{
			{ID: "a1", Title: "Program Committee", Organization: "OSDI", StartDate: "2026-01"},
		},
		Lab: content.Lab{
			Name:    "Reliable Systems Lab",
			Members: []string{"Jordan Park"},
		},
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderCVHTMLIncludesContent(t *testing.T) {
	html, err := RenderCVHTML(sampleData())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{
		"Avery Lindqvist",
		"Northfield Institute of Technology",
		"Consensus in Practice",
		"SOSP",
		"Why Consensus Is Hard",
		"Program Committee",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered CV missing %q", want)
		}
	}
}

func TestRenderCVHTMLEscapesMarkup(t *testing.T) {
	data := sampleData()
	data.Profile.Name = `<script>alert("x")</script>`

	html, err := RenderCVHTML(data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Error("profile name was not HTML-escaped")
	}
}

func TestRenderCVHTMLEmptySections(t *testing.T) {
	data := TemplateData{
		Profile:     content.Profile{Name: "Avery Lindqvist"},
		GeneratedAt: time.Now(),
	}
	html, err := RenderCVHTML(data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Avery Lindqvist") {
		t.Error("rendered CV missing the owner name")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Avery Lindqvist CV": "Avery-Lindqvist-CV",
		"":                   "cv",
		"../../etc/passwd":   "etcpasswd",
		"!!!///":             "cv",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
