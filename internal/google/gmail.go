package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/butler-ai/butler/internal/errors"
)

const gmailBaseURL = "https://gmail.googleapis.com/gmail/v1/users/me"

// maxBodyBytes bounds the extracted body to keep it within the
// reasoning service's input budget.
const maxBodyBytes = 4000

// Email is one message returned by a Gmail search.
type Email struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
	Body    string `json:"body"`
}

// Gmail wraps the Gmail REST API.
type Gmail struct {
	client    *Client
	baseURL   string
	converter *md.Converter
}

// NewGmail creates a Gmail service backed by the given OAuth client.
func NewGmail(client *Client) *Gmail {
	return &Gmail{
		client:    client,
		baseURL:   gmailBaseURL,
		converter: md.NewConverter("", true, nil),
	}
}

// SearchMessages searches the inbox with Gmail query syntax and fetches
// the full content of up to maxResults matches.
func (g *Gmail) SearchMessages(ctx context.Context, query string, maxResults int) ([]Email, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("maxResults", fmt.Sprintf("%d", maxResults))

	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := g.get(ctx, g.baseURL+"/messages?"+q.Encode(), &list); err != nil {
		return nil, err
	}

	emails := make([]Email, 0, len(list.Messages))
	for i, msg := range list.Messages {
		if i >= maxResults {
			break
		}
		var full gmailMessage
		if err := g.get(ctx, g.baseURL+"/messages/"+msg.ID+"?format=full", &full); err != nil {
			return nil, err
		}
		emails = append(emails, g.parseMessage(&full))
	}
	return emails, nil
}

// SendMessage sends a plain-text email.
func (g *Gmail) SendMessage(ctx context.Context, to, subject, body string) error {
	message := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s", to, subject, body)
	raw := base64.URLEncoding.EncodeToString([]byte(message))

	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return apperrors.Wrap(err, "gmail_send", "failed to encode message", apperrors.CategoryCollaborator)
	}
	return g.do(ctx, http.MethodPost, g.baseURL+"/messages/send", payload, nil)
}

func (g *Gmail) get(ctx context.Context, rawURL string, out any) error {
	return g.do(ctx, http.MethodGet, rawURL, nil, out)
}

// do performs an authenticated request, refreshing the access token once
// on 401.
func (g *Gmail) do(ctx context.Context, method, rawURL string, payload []byte, out any) error {
	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return apperrors.Wrap(err, "gmail_request", "failed to build request", apperrors.CategoryCollaborator)
		}
		req.Header.Set("Authorization", g.client.authHeader())
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := g.client.http.Do(req)
		if err != nil {
			return apperrors.Wrap(err, "gmail_request", "Gmail request failed", apperrors.CategoryCollaborator)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			if err := g.client.Refresh(ctx); err != nil {
				return err
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return apperrors.Wrap(err, "gmail_request", "failed to read response", apperrors.CategoryCollaborator)
		}
		if resp.StatusCode != http.StatusOK {
			return apperrors.New("gmail_request",
				fmt.Sprintf("Gmail API error (status %d): %s", resp.StatusCode, truncate(string(body), 200)),
				apperrors.CategoryCollaborator)
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(body, out)
	}
}

// ============================================================
// Message Parsing
// ============================================================

type gmailMessage struct {
	ID      string     `json:"id"`
	Snippet string     `json:"snippet"`
	Payload *gmailPart `json:"payload"`
}

type gmailPart struct {
	MimeType string        `json:"mimeType"`
	Headers  []gmailHeader `json:"headers"`
	Body     gmailBody     `json:"body"`
	Parts    []gmailPart   `json:"parts"`
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailBody struct {
	Data string `json:"data"`
}

func (g *Gmail) parseMessage(msg *gmailMessage) Email {
	email := Email{ID: msg.ID, Snippet: msg.Snippet}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				email.Subject = h.Value
			case "From":
				email.From = h.Value
			case "Date":
				email.Date = h.Value
			}
		}
		email.Body = g.extractBody(msg.Payload)
	}

	if strings.TrimSpace(email.Body) == "" {
		email.Body = msg.Snippet
	}
	email.Body = truncate(email.Body, maxBodyBytes)
	return email
}

// extractBody recursively extracts a text body from a MIME payload,
// preferring text/plain and falling back to rendered text/html.
func (g *Gmail) extractBody(payload *gmailPart) string {
	if payload.Body.Data != "" {
		if body := decodeBase64URL(payload.Body.Data); strings.TrimSpace(body) != "" {
			if payload.MimeType == "text/html" {
				return g.htmlToText(body)
			}
			return body
		}
	}

	for i := range payload.Parts {
		part := &payload.Parts[i]
		if part.MimeType == "text/plain" && part.Body.Data != "" {
			if body := decodeBase64URL(part.Body.Data); strings.TrimSpace(body) != "" {
				return body
			}
		}
		if strings.HasPrefix(part.MimeType, "multipart/") || len(part.Parts) > 0 {
			if nested := g.extractBody(part); strings.TrimSpace(nested) != "" {
				return nested
			}
		}
	}

	for i := range payload.Parts {
		part := &payload.Parts[i]
		if part.MimeType == "text/html" && part.Body.Data != "" {
			if html := decodeBase64URL(part.Body.Data); strings.TrimSpace(html) != "" {
				if text := g.htmlToText(html); text != "" {
					return text
				}
			}
		}
	}

	return ""
}

// htmlToText renders an HTML body as markdown so links and structure
// survive into the digest; falls back to stripped plain text.
func (g *Gmail) htmlToText(html string) string {
	if markdown, err := g.converter.ConvertString(html); err == nil {
		if trimmed := strings.TrimSpace(markdown); trimmed != "" {
			return trimmed
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func decodeBase64URL(data string) string {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return ""
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
