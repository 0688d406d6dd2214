package masking

import (
	"errors"
	"fmt"

	"docforge.org/internal/record"
)

// ErrRule indicates a malfunctioning rule set. The enclosing format's
// generation aborts rather than emit a possibly-unmasked artifact.
var ErrRule = errors.New("masking rule error")

// Masker redacts PII leaf values in a canonical record. Rules are evaluated
// in priority order; the first matching rule per leaf value wins, so values
// are never double-masked.
type Masker struct {
	rules []Rule
}

// NewMasker validates the rule set and returns a masker. With no rules the
// default set is used.
func NewMasker(rules ...Rule) (*Masker, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if err := validate(rules); err != nil {
		return nil, err
	}
	return &Masker{rules: rules}, nil
}

func validate(rules []Rule) error {
	for i, r := range rules {
		if r.Kind == "" {
			return fmt.Errorf("%w: rule %d has no kind", ErrRule, i)
		}
		if r.Pattern == nil && len(r.FieldHints) == 0 {
			return fmt.Errorf("%w: rule %q has neither pattern nor field hints", ErrRule, r.Kind)
		}
	}
	return nil
}

// Mask returns a masked deep copy of the record and per-kind redaction
// counts. The input record is never mutated.
func (m *Masker) Mask(rec record.Record) (record.Record, map[Kind]int, error) {
	if err := validate(m.rules); err != nil {
		return nil, nil, err
	}
	stats := map[Kind]int{}
	out := m.maskRecord(rec.Clone(), stats)
	return out, stats, nil
}

func (m *Masker) maskRecord(rec record.Record, stats map[Kind]int) record.Record {
	for key, v := range rec {
		switch v.Kind {
		case record.KindString:
			rec[key] = record.StringValue(m.maskLeaf(key, v.Str, stats))
		case record.KindRecord:
			rec[key] = record.RecordValue(m.maskRecord(v.Rec, stats))
		case record.KindTable:
			if v.Table != nil {
				for i, row := range v.Table.Rows {
					v.Table.Rows[i] = m.maskRecord(row, stats)
				}
			}
		}
	}
	return rec
}

// maskLeaf applies the highest-priority matching rule to one leaf value.
// A field-name hint forces its rule; otherwise each rule's detector is
// tried against the value and every occurrence of the first matching
// detector is redacted in place.
func (m *Masker) maskLeaf(field, value string, stats map[Kind]int) string {
	if value == "" {
		return value
	}
	for _, rule := range m.rules {
		if rule.MatchesField(field) {
			masked := rule.apply(value)
			if masked != value {
				stats[rule.Kind]++
			}
			return masked
		}
	}
	for _, rule := range m.rules {
		if rule.Pattern == nil || !rule.Pattern.MatchString(value) {
			continue
		}
		masked := rule.Pattern.ReplaceAllStringFunc(value, rule.apply)
		if masked != value {
			stats[rule.Kind]++
		}
		return masked
	}
	return value
}
