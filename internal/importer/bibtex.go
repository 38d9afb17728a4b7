package importer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

// BibEntry is one raw BibTeX entry. Field names are lowercased.
type BibEntry struct {
	Type   string
	Key    string
	Fields map[string]string
}

// ParseBibTeX scans a BibTeX file tolerantly: anything outside @entry
// blocks is ignored, braces and quotes both delimit values, and a broken
// entry is skipped without failing the rest of the file.
func ParseBibTeX(r io.Reader) ([]BibEntry, error) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("read bibtex input: %w", err)
	}

	var entries []BibEntry
	src := string(data)
	for {
		at := strings.Index(src, "@")
		if at < 0 {
			break
		}
		src = src[at+1:]

		open := strings.IndexByte(src, '{')
		if open < 0 {
			break
		}
		entryType := strings.ToLower(strings.TrimSpace(src[:open]))
		body, rest, ok := matchBraces(src[open:])
		src = rest
		if !ok || entryType == "comment" || entryType == "preamble" || entryType == "string" {
			continue
		}

		entry := BibEntry{Type: entryType, Fields: make(map[string]string)}
		if comma := strings.IndexByte(body, ','); comma >= 0 {
			entry.Key = strings.TrimSpace(body[:comma])
			parseBibFields(body[comma+1:], entry.Fields)
		} else {
			entry.Key = strings.TrimSpace(body)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// matchBraces consumes a balanced {...} block starting at src[0] == '{'
// and returns its inner text plus the remainder.
func matchBraces(src string) (body, rest string, ok bool) {
	depth := 0
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[1:i], src[i+1:], true
			}
		}
	}
	return "", "", false
}

func parseBibFields(body string, fields map[string]string) {
	i := 0
	for i < len(body) {
		eq := strings.IndexByte(body[i:], '=')
		if eq < 0 {
			return
		}
		name := strings.ToLower(strings.Trim(strings.TrimSpace(body[i:i+eq]), ","))
		i += eq + 1

		for i < len(body) && (body[i] == ' ' || body[i] == '\t' || body[i] == '\n' || body[i] == '\r') {
			i++
		}
		if i >= len(body) {
			return
		}

		var value string
		switch body[i] {
		case '{':
			inner, rest, ok := matchBraces(body[i:])
			if !ok {
				return
			}
			value = inner
			i = len(body) - len(rest)
		case '"':
			end := strings.IndexByte(body[i+1:], '"')
			if end < 0 {
				return
			}
			value = body[i+1 : i+1+end]
			i += end + 2
		default:
			end := strings.IndexAny(body[i:], ",\n")
			if end < 0 {
				end = len(body) - i
			}
			value = body[i : i+end]
			i += end
		}
		if name != "" {
			fields[name] = strings.Join(strings.Fields(value), " ")
		}

		if comma := strings.IndexByte(body[i:], ','); comma >= 0 {
			i += comma + 1
		} else {
			return
		}
	}
}

// ConvertBibEntry normalizes one BibTeX entry. Journal articles require a
// journal field; proceedings papers derive their event through the
// booktitle/note fallback chain. Unsupported entry types and records with
// no usable container produce no result.
func ConvertBibEntry(entry BibEntry) (*domain.NormalizedRecord, error) {
	var pubType domain.PublicationType
	switch entry.Type {
	case "article":
		pubType = domain.JournalPublication
	case "inproceedings", "conference":
		pubType = domain.ProceedingsPublication
	default:
		return nil, nil
	}

	title := entry.Fields["title"]
	if title == "" {
		return nil, nil
	}

	rec := &domain.NormalizedRecord{
		Identifier:      entry.Key,
		Source:          "bibtex",
		PublicationType: pubType,
		Title:           mergeMultilingual(nil, "en", title),
		DOI:             entry.Fields["doi"],
		Volume:          entry.Fields["volume"],
		Issue:           entry.Fields["number"],
	}

	switch pubType {
	case domain.JournalPublication:
		journal := entry.Fields["journal"]
		if journal == "" {
			return nil, nil
		}
		rec.Journal = &domain.JournalRef{
			Name: mergeMultilingual(nil, "en", journal),
			ISSN: entry.Fields["issn"],
		}
	case domain.ProceedingsPublication:
		eventName := deriveEventName(entry.Fields["booktitle"], entry.Fields["note"])
		if eventName == "" {
			return nil, nil
		}
		rec.Event = &domain.EventRef{Name: mergeMultilingual(nil, "en", eventName)}
	}

	rec.Contributions = authorContributions(strings.Split(entry.Fields["author"], " and "))
	if len(rec.Contributions) == 0 {
		return nil, nil
	}

	if abstract := entry.Fields["abstract"]; abstract != "" {
		rec.Description = mergeMultilingual(nil, "en", abstract)
	}
	for _, kw := range strings.FieldsFunc(entry.Fields["keywords"], func(r rune) bool { return r == ';' || r == ',' }) {
		rec.Keywords = mergeMultilingual(rec.Keywords, "en", strings.TrimSpace(kw))
	}

	pages := parsePageRange(entry.Fields["pages"])
	rec.StartPage, rec.EndPage, rec.NumberOfPages = pages.Start, pages.End, pages.NumberOfPages

	if year, err := strconv.Atoi(entry.Fields["year"]); err == nil {
		rec.Year = year
	}
	return rec, nil
}

// deriveEventName implements the venue fallback chain for proceedings
// papers: a structured booktitle first, then the semi-structured note
// field. An unstructured booktitle falls through to the note scan.
// Empty result means the record is invalid.
func deriveEventName(booktitle, note string) string {
	if booktitle != "" {
		if parts := strings.Split(booktitle, "; "); len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
		lower := strings.ToLower(booktitle)
		for _, prefix := range []string{"proceedings of the ", "proceedings of "} {
			if strings.HasPrefix(lower, prefix) {
				return strings.TrimSpace(booktitle[len(prefix):])
			}
		}
	}

	for _, segment := range strings.Split(note, ";") {
		segment = strings.TrimSpace(segment)
		if rest, ok := strings.CutPrefix(segment, "Conference name:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
