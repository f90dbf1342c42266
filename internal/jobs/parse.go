package jobs

import (
	"encoding/json"
	"fmt"
	"strings"

	"mediascribe-backend/internal/domain"
)

// promptByteLimit caps how much transcript text is sent to the LLM.
const promptByteLimit = 5000

// buildPrompt composes the fixed-format summarization prompt. The model is
// asked for JSON, but its reply is parsed leniently (see ParseSummaryReply).
func buildPrompt(transcript string) string {
	if len(transcript) > promptByteLimit {
		transcript = transcript[:promptByteLimit]
	}
	return fmt.Sprintf(`Please summarize the following text and also generate a short, clear, and descriptive title (max 10 words). Return ONLY valid JSON in this exact format, no explanations, no extra text:
{
    "title": "...",
    "summary": "..."
}

Text: %s`, transcript)
}

// ParseSummaryReply extracts title and summary from an LLM reply. LLM output
// is unreliable free text: the JSON object is located between the first '{'
// and the last '}', and any parse failure falls back to treating the whole
// reply as the summary body under the title "Untitled".
func ParseSummaryReply(reply string) (title, summary string) {
	raw, ok := findJSON(reply)
	if !ok {
		return "Untitled", reply
	}

	var parsed struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed.Summary == "" {
		return "Untitled", reply
	}
	if parsed.Title == "" {
		parsed.Title = "Untitled"
	}
	return parsed.Title, parsed.Summary
}

// findJSON returns the substring between the first '{' and the last '}'.
func findJSON(input string) (string, bool) {
	start := strings.Index(input, "{")
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(input, "}")
	if end < start {
		return "", false
	}
	return input[start : end+1], true
}

// parseTranscriptionPayload pulls text, language and segments out of the
// transcriber's result payload, degrading field by field: a payload that is
// not structured JSON becomes plain transcript text with language "unknown".
func parseTranscriptionPayload(payload string) (string, string, []domain.TranscriptionSegment) {
	var parsed struct {
		Text     string                        `json:"text"`
		Language string                        `json:"language"`
		Segments []domain.TranscriptionSegment `json:"segments"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return payload, "unknown", nil
	}

	text := parsed.Text
	if text == "" {
		text = payload
	}
	language := parsed.Language
	if language == "" {
		language = "unknown"
	}
	return text, language, parsed.Segments
}
