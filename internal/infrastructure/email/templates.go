// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/classloop/community-video-service/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

// RenderedEmail holds both HTML and text versions of a rendered email
type RenderedEmail struct {
	HTML string
	Text string
}

// TemplateManager renders the notification email templates.
type TemplateManager struct {
	templates map[string]templateSet
}

type templateSet struct {
	html *template.Template
	text *template.Template
}

// Template name keys.
const (
	tmplBookingConfirmation = "booking_confirmation"
	tmplTeacherBooking      = "teacher_booking_notice"
	tmplMembershipWelcome   = "membership_welcome"
	tmplGrandOpening        = "grand_opening"
)

var templateFuncs = template.FuncMap{
	"formatTime": func(t *time.Time) string {
		if t == nil {
			return "any time"
		}
		return t.UTC().Format("Monday, January 2, 2006 at 15:04 UTC")
	},
	"formatPrice": func(cents int64, currency string) string {
		return fmt.Sprintf("%.2f %s", float64(cents)/100, strings.ToUpper(currency))
	},
}

// NewTemplateManager loads every notification template from the embedded
// filesystem.
func NewTemplateManager() (*TemplateManager, error) {
	names := []string{
		tmplBookingConfirmation,
		tmplTeacherBooking,
		tmplMembershipWelcome,
		tmplGrandOpening,
	}

	templates := make(map[string]templateSet, len(names))
	for _, name := range names {
		html, err := loadTemplate(name + ".html")
		if err != nil {
			return nil, err
		}
		text, err := loadTemplate(name + ".txt")
		if err != nil {
			return nil, err
		}
		templates[name] = templateSet{html: html, text: text}
	}

	return &TemplateManager{templates: templates}, nil
}

func loadTemplate(filename string) (*template.Template, error) {
	content, err := templateFS.ReadFile("templates/" + filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", filename, err)
	}
	tmpl, err := template.New(filename).Funcs(templateFuncs).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", filename, err)
	}
	return tmpl, nil
}

func (tm *TemplateManager) render(name string, data any) (*RenderedEmail, error) {
	set, ok := tm.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template: %s", name)
	}

	html, err := renderTemplate(set.html, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML template %s: %w", name, err)
	}
	text, err := renderTemplate(set.text, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render text template %s: %w", name, err)
	}

	return &RenderedEmail{HTML: html, Text: text}, nil
}

func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderBookingConfirmation renders the student booking confirmation email.
func (tm *TemplateManager) RenderBookingConfirmation(data domain.BookingNotice) (*RenderedEmail, error) {
	return tm.render(tmplBookingConfirmation, data)
}

// RenderTeacherBookingNotice renders the teacher's new-booking email.
func (tm *TemplateManager) RenderTeacherBookingNotice(data domain.BookingNotice) (*RenderedEmail, error) {
	return tm.render(tmplTeacherBooking, data)
}

// RenderMembershipWelcome renders the standard membership welcome email.
func (tm *TemplateManager) RenderMembershipWelcome(data domain.MembershipWelcome) (*RenderedEmail, error) {
	return tm.render(tmplMembershipWelcome, data)
}

// RenderGrandOpening renders the grand-opening welcome email, sent instead of
// the standard welcome when the payment also opened the community.
func (tm *TemplateManager) RenderGrandOpening(data domain.MembershipWelcome) (*RenderedEmail, error) {
	return tm.render(tmplGrandOpening, data)
}
