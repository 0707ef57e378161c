package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"xdao.co/fundvault/fixedpoint"
)

// Render produces canonical snapshot bytes from a State.
func Render(s *State) ([]byte, error) {
	if err := validate(s); err != nil {
		return nil, err
	}

	meta := map[string]string{
		"Feed-Version":   s.FeedVersion,
		"Minimum-Stable": fixedpoint.FormatStable(s.MinimumStable),
		"Owner":          s.Owner.String(),
		"Schema":         s.Schema,
	}

	funders := map[string]string{
		"Count": fmt.Sprintf("%d", len(s.Funders)),
	}
	for i, addr := range s.Funders {
		funders[fmt.Sprintf("Funder-%08d", i)] = addr.String()
	}

	contributions := make(map[string]string, len(s.Contributions))
	for addr, amt := range s.Contributions {
		contributions[addr.String()] = amt.String()
	}

	totals := map[string]string{
		"Held-Value": s.HeldValue.String(),
	}

	sections := []struct {
		name  string
		pairs map[string]string
	}{
		{name: "META", pairs: meta},
		{name: "FUNDERS", pairs: funders},
		{name: "CONTRIBUTIONS", pairs: contributions},
		{name: "TOTALS", pairs: totals},
	}

	var sb strings.Builder
	sb.WriteString(Preamble)
	sb.WriteString("\n")

	for i, sec := range sections {
		sb.WriteString(sec.name)
		sb.WriteString("\n")

		keys := make([]string, 0, len(sec.pairs))
		for k := range sec.pairs {
			if k == "" {
				return nil, errors.New("empty key")
			}
			if !isASCII(k) {
				return nil, errors.New("non-ASCII key")
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := sec.pairs[k]
			if v == "" {
				return nil, errors.New("empty value")
			}
			if strings.HasPrefix(v, " ") {
				return nil, errors.New("value must not start with a space")
			}
			if strings.Contains(v, "\n") || strings.Contains(v, "\r") {
				return nil, errors.New("value must not contain newlines")
			}
			if strings.HasSuffix(v, " ") || strings.HasSuffix(v, "\t") {
				return nil, errors.New("trailing whitespace forbidden")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteString("\n")
		}

		if i != len(sections)-1 {
			sb.WriteString("\n")
		}
	}

	sb.WriteString(Postamble)
	return []byte(sb.String()), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
