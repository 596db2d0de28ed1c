package oracle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// The oracle answers in small string protocols (label::justification,
// duplicate::id::justification, SCORE::n::category::justification, index
// lists). Parsers return typed results; an ambiguous response is a
// ParseError so each stage can apply its own fail-open or fail-closed
// policy.

// ParseError marks a response that does not match the expected protocol.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ambiguous oracle response (%s): %q", e.Reason, truncateRaw(e.Raw))
}

// IsAmbiguous reports whether err stems from an unparseable oracle response.
func IsAmbiguous(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func truncateRaw(raw string) string {
	if len(raw) > 120 {
		return raw[:120] + "..."
	}
	return raw
}

// Verdict is a parsed yes/no style decision.
type Verdict struct {
	Accept        bool
	Justification string
}

var affirmativeTokens = []string{
	"yes", "si", "sí", "relevant", "relevante", "accept", "aceptar", "keep", "true",
}

var negativeTokens = []string{
	"not relevant", "no relevante", "irrelevant", "irrelevante",
	"no", "reject", "rechazar", "discard", "descartar", "false",
}

// ParseVerdict parses a `decision[::justification]` response, tolerant of
// localized yes/no tokens and partial matches.
func ParseVerdict(raw string) (Verdict, error) {
	label, justification := splitLabel(raw)
	if label == "" {
		return Verdict{}, &ParseError{Raw: raw, Reason: "empty response"}
	}

	// Negative tokens first: "not relevant" contains "relevant".
	for _, token := range negativeTokens {
		if matchesToken(label, token) {
			return Verdict{Accept: false, Justification: justification}, nil
		}
	}
	for _, token := range affirmativeTokens {
		if matchesToken(label, token) {
			return Verdict{Accept: true, Justification: justification}, nil
		}
	}

	return Verdict{}, &ParseError{Raw: raw, Reason: "unrecognized decision label"}
}

// DuplicateVerdict is a parsed duplicate/unique comparison result.
type DuplicateVerdict struct {
	Duplicate     bool
	MatchID       string
	Justification string
}

// ParseDuplicate parses `duplicate::id::justification` or
// `unique[::justification]`.
func ParseDuplicate(raw string) (DuplicateVerdict, error) {
	parts := splitParts(raw)
	if len(parts) == 0 || parts[0] == "" {
		return DuplicateVerdict{}, &ParseError{Raw: raw, Reason: "empty response"}
	}

	label := normalizeLabel(parts[0])
	switch {
	case matchesToken(label, "unique") || matchesToken(label, "unico") || matchesToken(label, "único"):
		verdict := DuplicateVerdict{Duplicate: false}
		if len(parts) > 1 {
			verdict.Justification = strings.Join(parts[1:], "::")
		}
		return verdict, nil
	case matchesToken(label, "duplicate") || matchesToken(label, "duplicado"):
		verdict := DuplicateVerdict{Duplicate: true}
		if len(parts) > 1 {
			verdict.MatchID = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			verdict.Justification = strings.Join(parts[2:], "::")
		}
		return verdict, nil
	}

	return DuplicateVerdict{}, &ParseError{Raw: raw, Reason: "unrecognized duplicate label"}
}

// ImportanceScore is a parsed `SCORE::n::category::justification` response.
type ImportanceScore struct {
	Value         float64
	Category      string
	Justification string
}

func ParseScore(raw string) (ImportanceScore, error) {
	parts := splitParts(raw)
	if len(parts) < 2 {
		return ImportanceScore{}, &ParseError{Raw: raw, Reason: "missing score fields"}
	}

	if !strings.EqualFold(normalizeLabel(parts[0]), "score") {
		return ImportanceScore{}, &ParseError{Raw: raw, Reason: "missing SCORE marker"}
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return ImportanceScore{}, &ParseError{Raw: raw, Reason: "unparseable score value"}
	}
	if value < 0 || value > 10 {
		return ImportanceScore{}, &ParseError{Raw: raw, Reason: "score out of range"}
	}

	score := ImportanceScore{Value: value}
	if len(parts) > 2 {
		score.Category = strings.ToLower(strings.TrimSpace(parts[2]))
	}
	if len(parts) > 3 {
		score.Justification = strings.Join(parts[3:], "::")
	}

	return score, nil
}

var noneTokens = []string{"none", "ninguna", "ninguno", "no groups", "empty"}

// ParseIndexList parses a comma-separated list of 1-based indices, or an
// explicit "none" token. Indices outside [1, max] are rejected.
func ParseIndexList(raw string, max int) ([]int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Raw: raw, Reason: "empty response"}
	}

	lowered := strings.ToLower(trimmed)
	for _, token := range noneTokens {
		if strings.HasPrefix(lowered, token) {
			return []int{}, nil
		}
	}

	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r < '0' || r > '9'
	})
	if len(fields) == 0 {
		return nil, &ParseError{Raw: raw, Reason: "no indices found"}
	}

	seen := make(map[int]bool)
	var indices []int
	for _, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, &ParseError{Raw: raw, Reason: "unparseable index"}
		}
		if n < 1 || n > max {
			return nil, &ParseError{Raw: raw, Reason: fmt.Sprintf("index %d out of range", n)}
		}
		if !seen[n] {
			seen[n] = true
			indices = append(indices, n)
		}
	}

	return indices, nil
}

// ParseGroups parses one topic group per line, each a list of 1-based item
// numbers. Lines with fewer than two members are ignored; a "none" token
// yields no groups.
func ParseGroups(raw string, max int) ([][]int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Raw: raw, Reason: "empty response"}
	}

	lowered := strings.ToLower(trimmed)
	for _, token := range noneTokens {
		if strings.HasPrefix(lowered, token) {
			return [][]int{}, nil
		}
	}

	var groups [][]int
	claimed := make(map[int]bool)
	for _, line := range strings.Split(trimmed, "\n") {
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r < '0' || r > '9'
		})
		if len(fields) < 2 {
			continue
		}

		var group []int
		for _, field := range fields {
			n, err := strconv.Atoi(field)
			if err != nil || n < 1 || n > max {
				return nil, &ParseError{Raw: raw, Reason: "invalid group member"}
			}
			if claimed[n] {
				continue
			}
			claimed[n] = true
			group = append(group, n)
		}
		if len(group) >= 2 {
			groups = append(groups, group)
		}
	}

	return groups, nil
}

func splitLabel(raw string) (string, string) {
	parts := splitParts(raw)
	if len(parts) == 0 {
		return "", ""
	}
	label := normalizeLabel(parts[0])
	if len(parts) == 1 {
		return label, ""
	}
	return label, strings.TrimSpace(strings.Join(parts[1:], "::"))
}

func splitParts(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "::")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	return strings.Trim(label, ".!¡¿?:;,\"' ")
}

func matchesToken(label, token string) bool {
	if label == token {
		return true
	}
	// Partial match: the label may carry extra words ("no, already covered").
	if strings.HasPrefix(label, token) {
		rest := label[len(token):]
		return rest == "" || !isLetter(rune(rest[0]))
	}
	return false
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
