package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/butler-ai/butler/internal/google"
	"github.com/butler-ai/butler/internal/tools"
)

// digestBodyLimit bounds how much of an email body goes into the digest.
const digestBodyLimit = 500

// FormatResults renders execution results as a digest for the response
// synthesizer, one block per step. Deterministic and side-effect-free.
func FormatResults(results []tools.ExecutionResult) string {
	var lines []string

	for i, result := range results {
		purpose := result.Purpose
		if purpose == "" {
			purpose = "Action"
		}
		lines = append(lines, fmt.Sprintf("Step %d: %s", i+1, purpose))

		if !result.Success {
			msg := result.Error
			if msg == "" {
				msg = "Unknown error"
			}
			lines = append(lines, "  Error: "+msg)
			continue
		}

		switch result.Kind {
		case tools.KindEmails:
			emails, _ := result.Data.([]google.Email)
			if len(emails) == 0 {
				lines = append(lines, "  No emails found")
				break
			}
			for _, email := range emails {
				lines = append(lines, "  Email: "+orDefault(email.Subject, "No subject"))
				lines = append(lines, "    From: "+orDefault(email.From, "Unknown"))
				lines = append(lines, "    Date: "+orDefault(email.Date, "Unknown"))
				lines = append(lines, "    Body: "+prefix(email.Body, digestBodyLimit))
			}

		case tools.KindEvents:
			events, _ := result.Data.([]google.Event)
			if len(events) == 0 {
				lines = append(lines, "  No events found")
				break
			}
			for _, event := range events {
				lines = append(lines, "  Event: "+orDefault(event.Title, "No title"))
				lines = append(lines, "    Start: "+orDefault(event.Start, "Unknown"))
				lines = append(lines, "    Location: "+orDefault(event.Location, "Not specified"))
			}

		case tools.KindEventCreated:
			if created, ok := result.Data.(tools.CreatedEvent); ok {
				lines = append(lines, fmt.Sprintf("  Created: %s on %s at %s", created.Title, created.Date, created.StartTime))
			} else {
				lines = append(lines, "  Event created")
			}

		case tools.KindEmailSent:
			lines = append(lines, "  Email sent successfully")

		default:
			lines = append(lines, "  Done")
		}
	}

	return strings.Join(lines, "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// prefix cuts s to at most n bytes without splitting a rune.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
