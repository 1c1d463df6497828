// Package content serves the static marketing copy for the public site.
// The copy is compiled into the binary so the public pages never depend
// on the record store being up.
package content

import (
	_ "embed"
	"encoding/json"
)

//go:embed content.json
var raw []byte

// Site is the marketing content for the public pages: hero banner,
// service cards, company stats, testimonials and contact details.
type Site struct {
	Hero         Hero          `json:"hero"`
	Services     []Service     `json:"services"`
	Stats        []Stat        `json:"stats"`
	Testimonials []Testimonial `json:"testimonials"`
	Contact      Contact       `json:"contact"`
}

type Hero struct {
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	CTAPrimary   string `json:"ctaPrimary"`
	CTASecondary string `json:"ctaSecondary"`
}

type Service struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Stat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Testimonial struct {
	Author  string `json:"author"`
	Company string `json:"company"`
	Quote   string `json:"quote"`
}

type Contact struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Load parses the embedded content. The payload ships inside the
// binary, so a parse failure is a build defect and panics at startup.
func Load() *Site {
	var s Site
	if err := json.Unmarshal(raw, &s); err != nil {
		panic("content: embedded content.json is invalid: " + err.Error())
	}
	return &s
}
