package intent

import (
	"strings"

	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
)

// fieldLabels 按优先级排列，问题中出现多个标签时取第一个尚未填写的字段。
var fieldLabels = []struct {
	label string
	field candidate.Field
}{
	{"full name", candidate.FullName},
	{"email address", candidate.EmailAddress},
	{"phone number", candidate.PhoneNumber},
	{"years of experience", candidate.YearsOfExperience},
	{"desired position", candidate.DesiredPositions},
	{"current location", candidate.CurrentLocation},
	{"tech stack", candidate.TechStack},
}

// ExitKeywords end the conversation when found anywhere in the user's input.
var ExitKeywords = []string{"quit", "exit", "bye", "goodbye", "stop", "end"}

// Label returns the phrase that routes answers to f.
func Label(f candidate.Field) string {
	for _, entry := range fieldLabels {
		if entry.field == f {
			return entry.label
		}
	}
	return ""
}

// Track binds userText to the first field, in priority order, whose label appears in the
// last assistant question and which is still empty. The trimmed answer is stored as is.
// When every labelled field is already filled the answer is dropped and the first
// labelled field is returned with false.
func Track(record *candidate.Record, userText, lastAssistant string) (candidate.Field, bool) {
	normalized := strings.ToLower(lastAssistant)
	if normalized == "" {
		return 0, false
	}

	first, found := candidate.Field(0), false
	for _, entry := range fieldLabels {
		if !strings.Contains(normalized, entry.label) {
			continue
		}
		if !found {
			first, found = entry.field, true
		}
		if record.IsSet(entry.field) {
			continue
		}
		if record.Fill(entry.field, strings.TrimSpace(userText)) {
			return entry.field, true
		}
	}
	return first, false
}

// IsExitSignal reports whether text contains any exit keyword. Matching is by substring,
// so "nonstop" and "weekend" count as exit signals too.
func IsExitSignal(text string) bool {
	normalized := strings.ToLower(text)
	for _, word := range ExitKeywords {
		if strings.Contains(normalized, word) {
			return true
		}
	}
	return false
}
