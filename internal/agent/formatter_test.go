package agent

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/butler-ai/butler/internal/google"
	"github.com/butler-ai/butler/internal/tools"
)

func TestFormatResultsEmails(t *testing.T) {
	results := []tools.ExecutionResult{{
		Success: true,
		Kind:    tools.KindEmails,
		Purpose: "Find recruiter emails",
		Data: []google.Email{{
			Subject: "Opportunity at Initech",
			From:    "recruiter@initech.com",
			Date:    "Mon, 24 Aug 2026 10:00:00 -0700",
			Body:    "We have an opening.",
		}},
	}}

	digest := FormatResults(results)

	assert.Contains(t, digest, "Step 1: Find recruiter emails")
	assert.Contains(t, digest, "  Email: Opportunity at Initech")
	assert.Contains(t, digest, "    From: recruiter@initech.com")
	assert.Contains(t, digest, "    Body: We have an opening.")
}

func TestFormatResultsTruncatesBody(t *testing.T) {
	results := []tools.ExecutionResult{{
		Success: true,
		Kind:    tools.KindEmails,
		Data:    []google.Email{{Subject: "long", Body: strings.Repeat("a", 2000)}},
	}}

	digest := FormatResults(results)

	for _, line := range strings.Split(digest, "\n") {
		if strings.HasPrefix(line, "    Body: ") {
			assert.Len(t, strings.TrimPrefix(line, "    Body: "), digestBodyLimit)
			return
		}
	}
	t.Fatal("no body line in digest")
}

func TestFormatResultsBodyPrefixKeepsRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", digestBodyLimit-1) + "日本語"
	results := []tools.ExecutionResult{{
		Success: true,
		Kind:    tools.KindEmails,
		Data:    []google.Email{{Subject: "multibyte", Body: body}},
	}}

	digest := FormatResults(results)

	assert.True(t, utf8.ValidString(digest))
	assert.NotContains(t, digest, "�")
}

func TestFormatResultsEmptyCollections(t *testing.T) {
	results := []tools.ExecutionResult{
		{Success: true, Kind: tools.KindEmails, Purpose: "search", Data: []google.Email{}},
		{Success: true, Kind: tools.KindEvents, Purpose: "list", Data: []google.Event{}},
	}

	digest := FormatResults(results)

	assert.Contains(t, digest, "  No emails found")
	assert.Contains(t, digest, "  No events found")
}

func TestFormatResultsEventsAndConfirmations(t *testing.T) {
	results := []tools.ExecutionResult{
		{
			Success: true, Kind: tools.KindEvents, Purpose: "list",
			Data: []google.Event{{Title: "Standup", Start: "2026-09-01T09:00:00Z"}},
		},
		{
			Success: true, Kind: tools.KindEventCreated, Purpose: "create",
			Data: tools.CreatedEvent{Title: "Dentist", Date: "2026-09-01", StartTime: "15:00"},
		},
		{Success: true, Kind: tools.KindEmailSent, Purpose: "send"},
	}

	digest := FormatResults(results)

	assert.Contains(t, digest, "  Event: Standup")
	assert.Contains(t, digest, "    Location: Not specified")
	assert.Contains(t, digest, "  Created: Dentist on 2026-09-01 at 15:00")
	assert.Contains(t, digest, "  Email sent successfully")
}

func TestFormatResultsFailure(t *testing.T) {
	results := []tools.ExecutionResult{
		{Success: false, Kind: tools.KindError, Purpose: "send", Error: "smtp refused"},
	}

	digest := FormatResults(results)

	assert.Contains(t, digest, "Step 1: send")
	assert.Contains(t, digest, "  Error: smtp refused")
}

func TestFormatResultsDeterministic(t *testing.T) {
	results := []tools.ExecutionResult{
		{Success: true, Kind: tools.KindEmails, Purpose: "a", Data: []google.Email{{Subject: "s"}}},
		{Success: false, Kind: tools.KindError, Purpose: "b", Error: "x"},
	}

	first := FormatResults(results)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, FormatResults(results))
	}
}
