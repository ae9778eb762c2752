package ledger

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jvs-project/warden/pkg/model"
)

const headerPrefix = "## "

var escaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

// FormatEntry renders e as a ledger block including the trailing blank line.
func FormatEntry(e model.LedgerEntry) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s%s | %s | %s\n", headerPrefix, e.Time.Format(time.RFC3339), e.Kind, escaper.Replace(e.ActorID))

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := strings.ReplaceAll(escaper.Replace(k), ":", "_")
		fmt.Fprintf(&buf, "%s: %s\n", key, escaper.Replace(e.Fields[k]))
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// ParseEntries reads ledger blocks from r. Malformed headers are skipped
// together with their fields.
func ParseEntries(r io.Reader) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	var cur *model.LedgerEntry

	flush := func() {
		if cur != nil {
			entries = append(entries, *cur)
			cur = nil
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	skipping := false
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
			skipping = false
		case strings.HasPrefix(line, headerPrefix):
			flush()
			e, ok := parseHeader(strings.TrimPrefix(line, headerPrefix))
			if !ok {
				skipping = true
				continue
			}
			skipping = false
			cur = &e
		case cur != nil && !skipping:
			k, v, ok := strings.Cut(line, ": ")
			if !ok {
				continue
			}
			if cur.Fields == nil {
				cur.Fields = make(map[string]string)
			}
			cur.Fields[k] = unescape(v)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scan ledger: %w", err)
	}
	return entries, nil
}

func parseHeader(s string) (model.LedgerEntry, bool) {
	parts := strings.SplitN(s, " | ", 3)
	if len(parts) != 3 {
		return model.LedgerEntry{}, false
	}
	ts, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return model.LedgerEntry{}, false
	}
	kind := model.EntryKind(parts[1])
	if !kind.Valid() {
		return model.LedgerEntry{}, false
	}
	return model.LedgerEntry{Time: ts, Kind: kind, ActorID: unescape(parts[2])}, true
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
