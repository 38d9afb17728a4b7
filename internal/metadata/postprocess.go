package metadata

// The two universal post-processing passes. They run on every converted
// record regardless of source: first the per-format field remapping for
// one-off exceptions, then the corrections some downstream validators
// legally require (element cardinality, stray empties).

// applyFieldRemappings handles exceptions specific to one output format.
func applyFieldRemappings(format string, model any) any {
	switch format {
	case FormatETDMS:
		// ETD-MS consumers expect the document date in W3CDTF "issued"
		// position, i.e. a single dc:date. Keep the first.
		if t, ok := model.(*ETDMSThesis); ok && len(t.Dates) > 1 {
			t.Dates = t.Dates[:1]
		}
	}
	return model
}

// applyNecessaryCorrections enforces format-specific legal quirks.
func applyNecessaryCorrections(format string, model any) any {
	switch m := model.(type) {
	case *DublinCore:
		m.Creators = dropEmpty(m.Creators)
		m.Identifiers = dropEmpty(m.Identifiers)
		m.Dates = dropEmpty(m.Dates)
		m.Types = dropEmpty(m.Types)
		m.Relations = dropEmpty(m.Relations)
	case *ETDMSThesis:
		m.Creators = dropEmpty(m.Creators)
		m.Identifiers = dropEmpty(m.Identifiers)
		// The ETD-MS schema allows at most one title per language; the
		// harvest validator rejects duplicates outright.
		m.Titles = dedupeByLang(m.Titles)
	}
	return model
}

func dropEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupeByLang(values []LangValue) []LangValue {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if v.Value == "" || seen[v.Lang] {
			continue
		}
		seen[v.Lang] = true
		out = append(out, v)
	}
	return out
}
