package domain

import (
	"encoding/json"
	"strings"
	"unicode"
)

// NormalizeEnum turns the spellings clients send (Plumbing, CommonArea,
// in-progress, In Progress) into the canonical UPPER_SNAKE form.
func NormalizeEnum(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw) + 4)
	var prev rune
	for i, r := range raw {
		switch {
		case r == '-' || r == ' ':
			r = '_'
		case i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
		prev = r
	}
	return b.String()
}

// ParseStatus normalizes raw without validating it.
func ParseStatus(raw string) TicketStatus { return TicketStatus(NormalizeEnum(raw)) }

// ParsePriority normalizes raw without validating it.
func ParsePriority(raw string) TicketPriority { return TicketPriority(NormalizeEnum(raw)) }

// ParseCategory normalizes raw without validating it.
func ParseCategory(raw string) TicketCategory { return TicketCategory(NormalizeEnum(raw)) }

// ParseVisibility normalizes raw without validating it.
func ParseVisibility(raw string) CommentVisibility { return CommentVisibility(NormalizeEnum(raw)) }

func unmarshalEnum(data []byte) (string, error) {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	return NormalizeEnum(raw), nil
}

// UnmarshalJSON accepts any spelling NormalizeEnum understands.
func (s *TicketStatus) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data)
	*s = TicketStatus(v)
	return err
}

// UnmarshalJSON accepts any spelling NormalizeEnum understands.
func (p *TicketPriority) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data)
	*p = TicketPriority(v)
	return err
}

// UnmarshalJSON accepts any spelling NormalizeEnum understands.
func (c *TicketCategory) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data)
	*c = TicketCategory(v)
	return err
}

// UnmarshalJSON accepts any spelling NormalizeEnum understands.
func (v *CommentVisibility) UnmarshalJSON(data []byte) error {
	s, err := unmarshalEnum(data)
	*v = CommentVisibility(s)
	return err
}
