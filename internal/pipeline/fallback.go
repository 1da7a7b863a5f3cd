package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cgigen/internal/domain"
)

// Built-in templates used when a text provider fails. A generic prompt still
// yields a usable, if plainer, result, so enhancement failures are absorbed
// here instead of failing the job.

func genericDescription(job *domain.Job) string {
	c := cases.Title(language.Und)
	subject := strings.TrimSpace(job.Title)
	if subject == "" {
		subject = "the product"
	}
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "%s placed naturally into the reference scene. ", c.String(subject))
	if intent := strings.TrimSpace(job.Description); intent != "" {
		fmt.Fprintf(sb, "%s. ", intent)
	}
	sb.WriteString("Professional advertising photography, soft studio lighting, photorealistic, high detail.")
	return sb.String()
}

func genericVideoPrompt(job *domain.Job) string {
	c := cases.Title(language.Und)
	subject := strings.TrimSpace(job.Title)
	if subject == "" {
		subject = "the product"
	}
	return fmt.Sprintf(
		"Slow cinematic camera push-in on %s, subtle ambient motion in the background, soft natural light, seamless five second advertisement loop.",
		c.String(subject),
	)
}
