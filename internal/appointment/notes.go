package appointment

import (
	"regexp"
	"strings"
	"unicode"
)

var notesNegationRE = regexp.MustCompile(
	`(?i)^\s*(?:no(?:pe)?[,.]?\s*)?(?:no\s+(?:special\s+)?notes?|nothing\s+special|nothing\s+else|nothing\s+to\s+add|no\s+special\s+(?:requests?|instructions?)|none)[,.!]?\s*$`)

// notesQuestionPhrases are the phrasings the assistant uses when asking for
// notes; a user reply right after one of these is taken verbatim.
var notesQuestionPhrases = []string{
	"any notes",
	"any special requests",
	"any special instructions",
	"anything else i should know",
	"anything else we should know",
	"anything else you'd like",
	"additional details",
	"any other details",
	"notes for your appointment",
}

// notesIntroPatterns spot a note embedded in a message that mostly supplies
// other fields. Ordered; the first capturing match wins.
var notesIntroPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bby the way,?\s+(.+)`),
	regexp.MustCompile(`(?i)\bplease note[:,]?\s+(.+)`),
	regexp.MustCompile(`(?i)^also,?\s+(.+)`),
	regexp.MustCompile(`(?i)\bmake sure\s+(.+)`),
	regexp.MustCompile(`(?i)\bjust so you know,?\s+(.+)`),
	regexp.MustCompile(`(?i)\bfyi[:,]?\s+(.+)`),
	regexp.MustCompile(`(?i)\bone more thing[:,]?\s+(.+)`),
	regexp.MustCompile(`(?i)\bkeep in mind\s+(.+)`),
}

var genericAcks = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "yup": true, "ok": true,
	"okay": true, "sure": true, "thanks": true, "thank": true, "you": true,
	"great": true, "cool": true, "sounds": true, "good": true, "fine": true,
	"perfect": true, "alright": true, "no": true, "nope": true, "that": true,
	"works": true, "awesome": true, "got": true, "it": true,
}

// isNoiseNote discards a short generic acknowledgement ("yes", "ok thanks")
// that carries no note content. Anything with a proper-noun-like token is
// kept: "Max" alone may be a pet's name the customer is telling us about.
func isNoiseNote(candidate string) bool {
	words := strings.Fields(candidate)
	if len(words) == 0 {
		return true
	}
	if len(words) >= 3 {
		return false
	}
	for _, word := range words {
		for _, r := range word {
			if unicode.IsUpper(r) {
				return false
			}
			break
		}
	}
	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?"))
		if cleaned == "" {
			continue
		}
		if !genericAcks[cleaned] {
			return false
		}
	}
	return true
}

// lastAssistantAskedAboutNotes checks whether the most recent assistant turn
// was a notes question.
func lastAssistantAskedAboutNotes(recent []Turn) bool {
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Role != RoleAssistant {
			continue
		}
		content := strings.ToLower(recent[i].Content)
		for _, phrase := range notesQuestionPhrases {
			if strings.Contains(content, phrase) {
				return true
			}
		}
		return false
	}
	return false
}

// resolveNotes decides what, if anything, the current message contributes to
// the draft's notes. Returns the note value, whether the field should be
// marked collected, and whether a decision was made at all.
func resolveNotes(prior *Draft, rawMessage string, recent []Turn) (value string, collected, ok bool) {
	if notesNegationRE.MatchString(rawMessage) {
		return "", true, true
	}

	askedForNotes := prior.NextStep == FieldNotes || lastAssistantAskedAboutNotes(recent)
	if askedForNotes {
		candidate := strings.TrimSpace(rawMessage)
		if isNoiseNote(candidate) {
			return "", false, false
		}
		return candidate, true, true
	}

	for _, pattern := range notesIntroPatterns {
		match := pattern.FindStringSubmatch(rawMessage)
		if len(match) < 2 {
			continue
		}
		candidate := strings.TrimRight(strings.TrimSpace(match[1]), ".!")
		if isNoiseNote(candidate) {
			return "", false, false
		}
		return candidate, true, true
	}

	return "", false, false
}
