package importer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

// WOSRecord is one raw record from a Web of Science tagged export file.
// Multi-value tags (AU, AF, C1) keep one entry per line.
type WOSRecord struct {
	Fields map[string][]string
}

func (r WOSRecord) first(tag string) string {
	if values := r.Fields[tag]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func (r WOSRecord) joined(tag string) string {
	return strings.Join(r.Fields[tag], " ")
}

// ParseWOS reads the ISI/WoS tagged plain-text format: two-letter tags in
// the first columns, indented continuation lines, records terminated by
// ER, the file by EF.
func ParseWOS(r io.Reader) ([]WOSRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		records []WOSRecord
		current *WOSRecord
		tag     string
	)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "EF"):
			if current != nil {
				records = append(records, *current)
				current = nil
			}
			return records, nil
		case strings.HasPrefix(line, "ER"):
			if current != nil {
				records = append(records, *current)
				current = nil
			}
			tag = ""
		case strings.HasPrefix(line, "   "):
			if current != nil && tag != "" {
				value := strings.TrimSpace(line)
				switch tag {
				case "AU", "AF", "C1", "CR":
					current.Fields[tag] = append(current.Fields[tag], value)
				default:
					n := len(current.Fields[tag])
					if n > 0 {
						current.Fields[tag][n-1] += " " + value
					}
				}
			}
		default:
			if len(line) < 2 {
				continue
			}
			tag = line[:2]
			if tag == "FN" || tag == "VR" {
				continue
			}
			if current == nil {
				current = &WOSRecord{Fields: make(map[string][]string)}
			}
			value := strings.TrimSpace(line[2:])
			current.Fields[tag] = append(current.Fields[tag], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read wos input: %w", err)
	}
	if current != nil {
		records = append(records, *current)
	}
	return records, nil
}

// ConvertWOSRecord normalizes one WoS record, classifying on the PT
// source-type code: J is a journal publication, C/P/S proceedings.
func ConvertWOSRecord(record WOSRecord) (*domain.NormalizedRecord, error) {
	var pubType domain.PublicationType
	switch record.first("PT") {
	case "J":
		pubType = domain.JournalPublication
	case "C", "P", "S":
		pubType = domain.ProceedingsPublication
	default:
		return nil, nil
	}

	title := record.joined("TI")
	venue := record.joined("SO")
	if title == "" {
		return nil, nil
	}

	rec := &domain.NormalizedRecord{
		Identifier:      record.first("UT"),
		Source:          "wos",
		PublicationType: pubType,
		Title:           mergeMultilingual(nil, "en", title),
		WebOfScienceID:  strings.TrimPrefix(record.first("UT"), "WOS:"),
		DOI:             record.first("DI"),
		Volume:          record.first("VL"),
		Issue:           record.first("IS"),
	}

	switch pubType {
	case domain.JournalPublication:
		if venue == "" {
			return nil, nil
		}
		rec.Journal = &domain.JournalRef{
			Name:  mergeMultilingual(nil, "en", venue),
			ISSN:  record.first("SN"),
			EISSN: record.first("EI"),
		}
	case domain.ProceedingsPublication:
		// The conference title tag is preferred over the series source.
		eventName := record.joined("CT")
		if eventName == "" {
			eventName = venue
		}
		if eventName == "" {
			return nil, nil
		}
		rec.Event = &domain.EventRef{
			Name:  mergeMultilingual(nil, "en", eventName),
			Place: record.joined("CL"),
		}
	}

	// AF carries full names, AU the abbreviated form; prefer AF.
	authors := record.Fields["AF"]
	if len(authors) == 0 {
		authors = record.Fields["AU"]
	}
	rec.Contributions = authorContributions(authors)
	if len(rec.Contributions) == 0 {
		return nil, nil
	}

	if abstract := record.joined("AB"); abstract != "" {
		rec.Description = mergeMultilingual(nil, "en", abstract)
	}
	for _, kw := range strings.Split(record.joined("DE"), ";") {
		rec.Keywords = mergeMultilingual(rec.Keywords, "en", strings.TrimSpace(kw))
	}

	rec.StartPage = record.first("BP")
	rec.EndPage = record.first("EP")
	if count, err := strconv.Atoi(record.first("PG")); err == nil && count > 0 {
		rec.NumberOfPages = intPtr(count)
	} else if count, ok := pageCount(rec.StartPage, rec.EndPage); ok {
		rec.NumberOfPages = intPtr(count)
	}

	if year, err := strconv.Atoi(record.first("PY")); err == nil {
		rec.Year = year
	}
	return rec, nil
}
