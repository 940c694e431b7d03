package converter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/young1lin/supplementbot/internal/models"
)

// FileNamer resolves an uploaded file ID to its filename
type FileNamer interface {
	FileName(ctx context.Context, fileID string) (string, error)
}

// span is a half-open rune range of the message text
type span struct {
	start, end int
	index      int
}

// ConvertMessage turns an assistant message into response text. Each
// annotation span is replaced by " [i]", where i is the annotation's
// position, and one citation line is appended per file citation.
func ConvertMessage(ctx context.Context, msg models.Message, files FileNamer) (string, error) {
	text := ReplaceAnnotations(msg.Text, msg.Annotations)

	citations, err := BuildCitations(ctx, msg.Annotations, files)
	if err != nil {
		return "", err
	}

	if len(citations) == 0 {
		return text, nil
	}
	return text + "\n\n" + strings.Join(citations, "\n"), nil
}

// ReplaceAnnotations replaces annotation spans with their bracketed index.
// Spans come from start/end indices when they match the annotation text,
// otherwise from the first free occurrence of the text.
func ReplaceAnnotations(text string, annotations []models.Annotation) string {
	if len(annotations) == 0 {
		return text
	}

	runes := []rune(text)
	var spans []span

	for i, a := range annotations {
		s, ok := exactSpan(runes, a)
		if !ok {
			s, ok = searchSpan(runes, a.Text, spans)
		}
		if !ok || overlaps(s, spans) {
			continue
		}
		s.index = i
		spans = append(spans, s)
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.WriteString(string(runes[last:s.start]))
		fmt.Fprintf(&b, " [%d]", s.index)
		last = s.end
	}
	b.WriteString(string(runes[last:]))

	return b.String()
}

// BuildCitations formats one line per file citation, in annotation order
func BuildCitations(ctx context.Context, annotations []models.Annotation, files FileNamer) ([]string, error) {
	var citations []string
	for i, a := range annotations {
		if !a.HasFileCitation() {
			continue
		}

		filename, err := files.FileName(ctx, a.FileID)
		if err != nil {
			return nil, err
		}

		if quote := strings.TrimSpace(a.Quote); quote != "" {
			citations = append(citations, fmt.Sprintf("[%d] %s from %s", i, quote, filename))
		} else {
			citations = append(citations, fmt.Sprintf("[%d] from %s", i, filename))
		}
	}
	return citations, nil
}

func exactSpan(runes []rune, a models.Annotation) (span, bool) {
	if a.StartIndex < 0 || a.EndIndex <= a.StartIndex || a.EndIndex > len(runes) {
		return span{}, false
	}
	if a.Text != "" && string(runes[a.StartIndex:a.EndIndex]) != a.Text {
		return span{}, false
	}
	return span{start: a.StartIndex, end: a.EndIndex}, true
}

func searchSpan(runes []rune, text string, taken []span) (span, bool) {
	needle := []rune(text)
	if len(needle) == 0 {
		return span{}, false
	}

	for start := 0; start+len(needle) <= len(runes); start++ {
		if string(runes[start:start+len(needle)]) != text {
			continue
		}
		s := span{start: start, end: start + len(needle)}
		if !overlaps(s, taken) {
			return s, true
		}
	}
	return span{}, false
}

func overlaps(s span, spans []span) bool {
	for _, o := range spans {
		if s.start < o.end && o.start < s.end {
			return true
		}
	}
	return false
}
