// Package cardtext reads and writes the line-oriented card format
//
//	english | chinese | note | progress | position
//
// Only the first two fields are required. A positive progress seeds the
// correct streak, a negative one the wrong streak. position is a 0-based
// queue index.
package cardtext

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/vytor/vocabdrill/internal/models"
)

const (
	separator     = "|"
	commentPrefix = "#"
	maxFields     = 5
	// escape marks an english field that would otherwise read as a comment.
	escape = `\`

	maxProgress = 1_000_000
)

var (
	ErrMissingText   = errors.New("english and chinese are required")
	ErrTooManyFields = errors.New("too many fields")
	ErrBadProgress   = errors.New("progress must be an integer within ±1000000")
	ErrBadPosition   = errors.New("position must be a non-negative integer")
)

// Entry is one parsed line.
type Entry struct {
	Line     int
	Card     models.Card
	Position *int
}

// LineError ties a parse failure to its 1-based line number.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// Parse reads every line from r. Bad lines are reported and skipped; the
// returned error is only set when r itself fails.
func Parse(r io.Reader) ([]Entry, []LineError, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []Entry
	var bad []LineError
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			bad = append(bad, LineError{Line: lineNo, Err: err})
			continue
		}
		entry.Line = lineNo
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return entries, bad, nil
}

func parseLine(line string) (Entry, error) {
	fields := strings.Split(line, separator)
	if len(fields) > maxFields {
		return Entry{}, ErrTooManyFields
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	field := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	var e Entry
	e.Card.English = field(0)
	if strings.HasPrefix(e.Card.English, escape) && looksLikeComment(e.Card.English) {
		e.Card.English = e.Card.English[len(escape):]
	}
	e.Card.Chinese = field(1)
	e.Card.Note = field(2)
	if e.Card.English == "" || e.Card.Chinese == "" {
		return Entry{}, ErrMissingText
	}

	if p := field(3); p != "" {
		progress, err := strconv.Atoi(p)
		if err != nil || progress > maxProgress || progress < -maxProgress {
			return Entry{}, ErrBadProgress
		}
		e.Card.SetProgress(progress)
	}
	if p := field(4); p != "" {
		pos, err := strconv.Atoi(p)
		if err != nil || pos < 0 {
			return Entry{}, ErrBadPosition
		}
		e.Position = &pos
	}
	return e, nil
}

// Sort orders entries with an explicit position first, ascending, then the
// rest. Ties keep line order.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Position, entries[j].Position
		switch {
		case a != nil && b != nil:
			return *a < *b
		case a != nil:
			return true
		default:
			return false
		}
	})
}

// Place returns queue with the ids of sorted entries merged in: explicit
// positions are spliced in (clamped to the queue end), implicit ones are
// appended. Entries must have card ids set.
func Place(queue []string, sorted []Entry) []string {
	out := append([]string(nil), queue...)
	last := -1
	for _, e := range sorted {
		if e.Position == nil {
			out = append(out, e.Card.ID)
			continue
		}
		idx := *e.Position
		if idx > len(out) {
			idx = len(out)
		}
		if idx <= last {
			idx = last + 1
		}
		out = append(out, "")
		copy(out[idx+1:], out[idx:])
		out[idx] = e.Card.ID
		last = idx
	}
	return out
}

// Write exports deck in queue order with the queue index as position.
// Cards outside the queue follow without a position.
func Write(w io.Writer, deck models.Deck) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s\n", sanitize(deck.Name))
	fmt.Fprintln(bw, "# english | chinese | note | progress | position")

	queued := make(map[string]bool, len(deck.Queue))
	for i, id := range deck.Queue {
		c, ok := deck.Card(id)
		if !ok {
			continue
		}
		queued[id] = true
		writeLine(bw, c, strconv.Itoa(i))
	}
	for _, c := range deck.Cards {
		if !queued[c.ID] {
			writeLine(bw, c, "")
		}
	}
	return bw.Flush()
}

func writeLine(w io.Writer, c models.Card, position string) {
	english := strings.TrimSpace(sanitize(c.English))
	if looksLikeComment(english) {
		english = escape + english
	}
	progress := max(-maxProgress, min(c.Progress(), maxProgress))
	fmt.Fprintf(w, "%s | %s | %s | %d | %s\n",
		english, sanitize(c.Chinese), sanitize(c.Note), progress, position)
}

// looksLikeComment reports whether s starts with the comment prefix once any
// leading escapes are removed.
func looksLikeComment(s string) bool {
	return strings.HasPrefix(strings.TrimLeft(s, escape), commentPrefix)
}

// sanitize keeps a field on one line and free of separators.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, separator, "/")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
