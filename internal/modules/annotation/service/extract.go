package annotation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	mentionPattern = regexp.MustCompile(`@(\w+)`)
)

// MentionSpan offsets are character (rune) positions; End is exclusive and
// the span includes the leading '@'.
type MentionSpan struct {
	Username string
	Start    int
	End      int
}

// ExtractHashtags returns distinct lowercased tags in order of first use.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// ExtractMentions returns every @username occurrence, repeats included.
func ExtractMentions(text string) []MentionSpan {
	idx := mentionPattern.FindAllStringSubmatchIndex(text, -1)
	spans := make([]MentionSpan, 0, len(idx))
	for _, m := range idx {
		start := utf8.RuneCountInString(text[:m[0]])
		spans = append(spans, MentionSpan{
			Username: text[m[2]:m[3]],
			Start:    start,
			End:      start + utf8.RuneCountInString(text[m[0]:m[1]]),
		})
	}
	return spans
}

func distinctUsernames(spans []MentionSpan) []string {
	seen := make(map[string]struct{}, len(spans))
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		key := strings.ToLower(s.Username)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, s.Username)
	}
	return names
}
