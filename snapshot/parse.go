package snapshot

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"xdao.co/fundvault/fixedpoint"
	"xdao.co/fundvault/identity"
)

// Parse parses a snapshot document and enforces the v1 canonical
// serialization rules. Non-canonical inputs are rejected, so for any state
// there is exactly one byte sequence Parse accepts.
func Parse(data []byte) (*State, error) {
	if !utf8.Valid(data) {
		return nil, errors.New("snapshot must be valid UTF-8")
	}
	if len(data) > 0 && data[len(data)-1] == '\n' {
		return nil, errors.New("trailing newline not allowed")
	}
	if !bytes.HasSuffix(data, []byte(Postamble)) {
		return nil, errors.New("missing snapshot postamble")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, errors.New("CR line endings not allowed")
	}
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, errors.New("BOM not allowed")
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t') {
			return nil, errors.New("trailing whitespace forbidden")
		}
	}
	if !bytes.HasPrefix(data, []byte(Preamble+"\n")) {
		return nil, errors.New("snapshot preamble must be on its own line")
	}

	sections := make(map[string]map[string]string)
	reader := bufio.NewReader(bytes.NewReader(data))
	readLine := func() (string, error) {
		l, err := reader.ReadString('\n')
		if err == io.EOF {
			return strings.TrimRight(l, "\n"), io.EOF
		}
		if err != nil {
			return "", err
		}
		return strings.TrimRight(l, "\n"), nil
	}

	first, err := readLine()
	if err != nil && err != io.EOF {
		return nil, err
	}
	if first != Preamble {
		return nil, errors.New("snapshot preamble must be exact")
	}

	sectionIndex := -1
	var currSection string
	var currPairs map[string]string
	var currKeyOrder []string
	seenSection := map[string]bool{}
	afterSeparator := false

	flushSection := func() error {
		if currSection == "" {
			return nil
		}
		sorted := append([]string(nil), currKeyOrder...)
		sort.Strings(sorted)
		for i := range sorted {
			if sorted[i] != currKeyOrder[i] {
				return errors.New("keys not sorted lexicographically")
			}
		}
		sections[currSection] = currPairs
		currSection = ""
		currPairs = nil
		currKeyOrder = nil
		return nil
	}

	for {
		line, rerr := readLine()
		if rerr != nil && rerr != io.EOF {
			return nil, rerr
		}

		if line == Postamble {
			if afterSeparator {
				return nil, errors.New("unexpected blank line before postamble")
			}
			if err := flushSection(); err != nil {
				return nil, err
			}
			break
		}

		if isSectionHeader(line) {
			if currSection != "" {
				return nil, errors.New("missing blank line between sections")
			}
			if seenSection[line] {
				return nil, errors.New("duplicate section")
			}
			sectionIndex++
			if sectionIndex >= len(SectionOrder) || SectionOrder[sectionIndex] != line {
				return nil, errors.New("sections missing or out of order")
			}
			if sectionIndex == 0 {
				if afterSeparator {
					return nil, errors.New("blank line before first section not allowed")
				}
			} else {
				if !afterSeparator {
					return nil, errors.New("missing blank line between sections")
				}
			}
			afterSeparator = false
			seenSection[line] = true
			currSection = line
			currPairs = make(map[string]string)
			continue
		}

		if sectionIndex < 0 {
			return nil, errors.New("unexpected content before first section")
		}

		if line == "" {
			if currSection == "" {
				return nil, errors.New("blank line outside section not allowed")
			}
			if currSection == SectionOrder[len(SectionOrder)-1] {
				return nil, errors.New("blank line after last section not allowed")
			}
			if afterSeparator {
				return nil, errors.New("multiple blank lines between sections not allowed")
			}
			if err := flushSection(); err != nil {
				return nil, err
			}
			afterSeparator = true
			continue
		}

		if currSection == "" {
			return nil, errors.New("content outside section")
		}
		if afterSeparator {
			return nil, errors.New("expected section header after blank line")
		}
		if !strings.Contains(line, ": ") {
			return nil, errors.New("invalid key-value formatting")
		}
		kv := strings.SplitN(line, ": ", 2)
		key, val := kv[0], kv[1]
		if key == "" {
			return nil, errors.New("empty key")
		}
		if !isASCII(key) {
			return nil, errors.New("non-ASCII key")
		}
		if strings.HasPrefix(val, " ") {
			return nil, errors.New("value must not start with a space")
		}
		if _, exists := currPairs[key]; exists {
			return nil, errors.New("duplicate key in section")
		}
		currPairs[key] = val
		currKeyOrder = append(currKeyOrder, key)

		if rerr == io.EOF {
			return nil, errors.New("missing snapshot postamble")
		}
	}

	for _, s := range SectionOrder {
		if !seenSection[s] {
			return nil, errors.New("sections missing or out of order")
		}
	}

	s, err := decode(sections)
	if err != nil {
		return nil, err
	}
	if err := validate(s); err != nil {
		return nil, err
	}

	// Enforce full canonical byte identity by re-rendering and comparing.
	// This makes Parse() strictly reject any non-canonical inputs.
	canonical, err := Render(s)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(data, canonical) {
		return nil, errors.New("non-canonical snapshot")
	}
	return s, nil
}

func decode(sections map[string]map[string]string) (*State, error) {
	meta := sections["META"]
	if len(meta) != 4 {
		return nil, fmt.Errorf("META must hold exactly 4 keys, found %d", len(meta))
	}
	owner, err := identity.ParseAddress(meta["Owner"])
	if err != nil {
		return nil, fmt.Errorf("META Owner: %w", err)
	}
	min, err := fixedpoint.ParseStable(meta["Minimum-Stable"])
	if err != nil {
		return nil, fmt.Errorf("META Minimum-Stable: %w", err)
	}
	s := &State{
		Schema:        meta["Schema"],
		Owner:         owner,
		FeedVersion:   meta["Feed-Version"],
		MinimumStable: min,
		Contributions: make(map[identity.Address]*big.Int),
	}

	funders := sections["FUNDERS"]
	count, err := strconv.ParseUint(funders["Count"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("FUNDERS Count: %w", err)
	}
	if uint64(len(funders)) != count+1 {
		return nil, fmt.Errorf("FUNDERS holds %d entries for count %d", len(funders)-1, count)
	}
	for i := uint64(0); i < count; i++ {
		v, ok := funders[fmt.Sprintf("Funder-%08d", i)]
		if !ok {
			return nil, fmt.Errorf("FUNDERS missing index %d", i)
		}
		addr, err := identity.ParseAddress(v)
		if err != nil {
			return nil, fmt.Errorf("FUNDERS index %d: %w", i, err)
		}
		s.Funders = append(s.Funders, addr)
	}

	for k, v := range sections["CONTRIBUTIONS"] {
		addr, err := identity.ParseAddress(k)
		if err != nil {
			return nil, fmt.Errorf("CONTRIBUTIONS key %q: %w", k, err)
		}
		amt, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("CONTRIBUTIONS %s: malformed amount %q", k, v)
		}
		s.Contributions[addr] = amt
	}

	totals := sections["TOTALS"]
	if len(totals) != 1 {
		return nil, fmt.Errorf("TOTALS must hold exactly 1 key, found %d", len(totals))
	}
	held, ok := new(big.Int).SetString(totals["Held-Value"], 10)
	if !ok {
		return nil, fmt.Errorf("TOTALS Held-Value: malformed amount %q", totals["Held-Value"])
	}
	s.HeldValue = held
	return s, nil
}

func isSectionHeader(line string) bool {
	for _, s := range SectionOrder {
		if line == s {
			return true
		}
	}
	return false
}
