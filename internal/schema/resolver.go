package schema

import (
	"strings"

	"fleetdocs-service/internal/domain/fleet"
	"fleetdocs-service/internal/utils"
)

// Column is a resolved source column.
type Column struct {
	Attribute string `json:"attribute"`
	Index     int    `json:"index"`
	Header    string `json:"header"`
}

// Resolution maps canonical attributes to source columns.
type Resolution struct {
	Role    fleet.Role        `json:"role"`
	Mode    Mode              `json:"mode"`
	Columns map[string]Column `json:"columns"`
}

// Index returns the column index for attr, or -1 when unresolved.
func (r Resolution) Index(attr string) int {
	if c, ok := r.Columns[attr]; ok {
		return c.Index
	}
	return -1
}

// Resolve dispatches on mode.
func Resolve(headers []string, role fleet.Role, mode Mode) (Resolution, error) {
	if mode == ModeStrict {
		return ResolveStrict(headers, role)
	}
	return ResolveFuzzy(headers, role)
}

// ResolveFuzzy resolves headers by substring search over their folded form
// (trimmed, uppercased, accents removed). Only plate and expiration date are
// required; other attributes are left out when absent.
func ResolveFuzzy(headers []string, role fleet.Role) (Resolution, error) {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = utils.FoldHeader(h)
	}

	res := Resolution{Role: role, Mode: ModeFuzzy, Columns: make(map[string]Column)}
	claimed := make(map[int]bool)

	for _, ar := range fuzzyPrecedence {
		idx := firstMatch(folded, claimed, ar.Rules)
		if idx < 0 {
			continue
		}
		claimed[idx] = true
		res.Columns[ar.Attribute] = Column{Attribute: ar.Attribute, Index: idx, Header: headers[idx]}
	}

	var missing []string
	for _, attr := range RequiredAttributes {
		if _, ok := res.Columns[attr]; !ok {
			missing = append(missing, attr)
		}
	}
	if len(missing) > 0 {
		return res, &SchemaResolutionError{Role: role, Mode: ModeFuzzy, Missing: missing, Found: headers}
	}
	return res, nil
}

func firstMatch(folded []string, claimed map[int]bool, rules []matchRule) int {
	for _, rule := range rules {
		for i, h := range folded {
			if claimed[i] {
				continue
			}
			if rule.matches(h) {
				return i
			}
		}
	}
	return -1
}

func (m matchRule) matches(h string) bool {
	if m.Exact != "" && h != m.Exact {
		return false
	}
	for _, s := range m.All {
		if !strings.Contains(h, s) {
			return false
		}
	}
	for _, s := range m.None {
		if strings.Contains(h, s) {
			return false
		}
	}
	return true
}

// ResolveStrict requires every header of the role's StrictVocabulary to be
// present with its exact spelling (surrounding whitespace ignored).
func ResolveStrict(headers []string, role fleet.Role) (Resolution, error) {
	positions := make(map[string]int, len(headers))
	for i, h := range headers {
		key := strings.TrimSpace(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	res := Resolution{Role: role, Mode: ModeStrict, Columns: make(map[string]Column)}
	var missing []string
	for _, sc := range StrictVocabulary[role] {
		idx, ok := positions[sc.Header]
		if !ok {
			missing = append(missing, sc.Header)
			continue
		}
		res.Columns[sc.Attribute] = Column{Attribute: sc.Attribute, Index: idx, Header: headers[idx]}
	}
	if len(missing) > 0 {
		return res, &SchemaResolutionError{Role: role, Mode: ModeStrict, Missing: missing, Found: headers}
	}
	return res, nil
}
