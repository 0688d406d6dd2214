package masking

import (
	"regexp"
	"strings"
)

// Kind identifies one PII category. The set is closed: new categories are
// added by appending a rule, not by editing the masker's control flow.
type Kind string

const (
	KindIDCard   Kind = "id_card"
	KindBankCard Kind = "bank_card"
	KindPhone    Kind = "phone"
	KindEmail    Kind = "email"
	KindName     Kind = "name"
)

const maskChar = 'X'

// Rule describes one PII category: how it is detected and how much of a
// matching value is blanked at each end. The priority order of the rule
// slice is significant; the first matching rule per leaf value wins.
type Rule struct {
	Kind       Kind
	Pattern    *regexp.Regexp // nil for field-hint-only rules (person names)
	FieldHints []string       // field names that force this rule, lower-cased

	// MaskHead runes at the start and MaskTail runes at the end of the value
	// are replaced with the mask character; the middle stays readable.
	MaskHead int
	MaskTail int
	// ShowLen, when positive, overrides MaskTail: everything past
	// MaskHead+ShowLen is blanked. Used for variable-length values such as
	// bank card numbers.
	ShowLen int
}

// MatchesField reports whether the rule is forced for the given field name.
func (r Rule) MatchesField(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, h := range r.FieldHints {
		if name == h {
			return true
		}
	}
	return false
}

// DefaultRules returns the built-in rule set in its fixed priority order:
// ID card, bank card, phone, email, person name.
func DefaultRules() []Rule {
	return []Rule{
		{
			Kind:       KindIDCard,
			Pattern:    regexp.MustCompile(`\b[1-9]\d{5}(?:19|20)\d{2}(?:0[1-9]|1[0-2])(?:0[1-9]|[12]\d|3[01])\d{3}[\dXx]\b`),
			FieldHints: []string{"id_card", "id_number", "identity", "身份证号", "身份证"},
			MaskHead:   3,
			MaskTail:   4,
		},
		{
			Kind:       KindBankCard,
			Pattern:    regexp.MustCompile(`\b[3-6]\d{15,18}\b`),
			FieldHints: []string{"bank_card", "card_number", "银行卡号", "银行卡"},
			MaskHead:   4,
			ShowLen:    8,
		},
		{
			Kind:       KindPhone,
			Pattern:    regexp.MustCompile(`\b1[3-9]\d{9}\b`),
			FieldHints: []string{"phone", "mobile", "telephone", "手机号", "手机", "联系电话"},
			MaskHead:   3,
			MaskTail:   4,
		},
		{
			Kind:       KindEmail,
			Pattern:    regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
			FieldHints: []string{"email", "mail", "邮箱", "电子邮件"},
		},
		{
			Kind:       KindName,
			FieldHints: []string{"name", "full_name", "姓名", "名字"},
		},
	}
}

// apply masks a single value according to the rule. Values the rule cannot
// sensibly mask (too short for the window) come back unchanged, which also
// makes re-masking a no-op.
func (r Rule) apply(value string) string {
	switch r.Kind {
	case KindEmail:
		return maskEmail(value)
	case KindName:
		return maskName(value)
	default:
		return maskWindow(value, r.MaskHead, r.MaskTail, r.ShowLen)
	}
}

func maskWindow(value string, head, tail, show int) string {
	runes := []rune(value)
	n := len(runes)
	if show > 0 {
		tail = n - head - show
	}
	if head < 0 || tail < 0 || head+tail >= n {
		return value
	}
	for i := 0; i < head; i++ {
		runes[i] = maskChar
	}
	for i := n - tail; i < n; i++ {
		runes[i] = maskChar
	}
	return string(runes)
}

// maskEmail blanks the local part (keeping a two-character stub) and the
// TLD: user@mail.example.com -> XX****@mail.example.XXX.
func maskEmail(value string) string {
	at := strings.Index(value, "@")
	if at < 0 {
		return value
	}
	local, domain := value[:at], value[at+1:]

	var maskedLocal string
	if len(local) <= 2 {
		maskedLocal = strings.Repeat(string(maskChar), len(local))
	} else {
		maskedLocal = "XX****"
	}

	maskedDomain := domain
	if dot := strings.LastIndex(domain, "."); dot >= 0 {
		maskedDomain = domain[:dot] + "." + strings.Repeat(string(maskChar), len(domain)-dot-1)
	}
	return maskedLocal + "@" + maskedDomain
}

// maskName keeps the family name (first rune) and stars the rest.
func maskName(value string) string {
	runes := []rune(value)
	if len(runes) <= 1 {
		return value
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}
