// Package backup encodes every deck into one versioned JSON document and
// migrates older document versions to the current shape on decode.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/vytor/vocabdrill/internal/models"
)

// CurrentVersion is written by Encode.
const CurrentVersion = 2

var ErrUnsupportedVersion = errors.New("backup: unsupported version")

// Document is the current backup shape.
type Document struct {
	Version    int           `json:"version"`
	ExportedAt time.Time     `json:"exported_at"`
	Decks      []models.Deck `json:"decks"`
}

// Encode writes decks as a current-version document.
func Encode(w io.Writer, decks []models.Deck, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{
		Version:    CurrentVersion,
		ExportedAt: now.UTC(),
		Decks:      decks,
	})
}

// Decode reads a document of any known version and returns it normalized
// to the current shape.
func Decode(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode backup header: %w", err)
	}

	var doc *Document
	switch head.Version {
	case 0, 1:
		doc, err = decodeV1(raw)
	case 2:
		doc, err = decodeV2(raw)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, head.Version)
	}
	if err != nil {
		return nil, err
	}
	owners := make(map[string]string)
	for i := range doc.Decks {
		d := &doc.Decks[i]
		Normalize(d)
		Rekey(d, func(id string) bool {
			owner, ok := owners[id]
			return ok && owner != d.ID
		})
		for _, c := range d.Cards {
			owners[c.ID] = d.ID
		}
	}
	doc.Version = CurrentVersion
	return doc, nil
}

func decodeV2(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode backup v2: %w", err)
	}
	return &doc, nil
}

// v1 documents predate separate streak counters: a card carried one signed
// progress value, ids were optional and a missing queue meant card order.
type v1Document struct {
	ExportedAt *time.Time `json:"exportedAt"`
	Decks      []v1Deck   `json:"decks"`
}

type v1Deck struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Cards []v1Card  `json:"cards"`
	Queue *[]string `json:"queue"`
}

type v1Card struct {
	ID           string     `json:"id"`
	English      string     `json:"english"`
	Chinese      string     `json:"chinese"`
	Note         string     `json:"note"`
	Progress     int        `json:"progress"`
	Reviews      int        `json:"reviews"`
	LastReviewed *time.Time `json:"lastReviewed"`
}

func decodeV1(raw []byte) (*Document, error) {
	var old v1Document
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, fmt.Errorf("decode backup v1: %w", err)
	}

	doc := &Document{Version: 1}
	if old.ExportedAt != nil {
		doc.ExportedAt = *old.ExportedAt
	}
	for _, od := range old.Decks {
		d := models.Deck{ID: od.ID, Name: od.Name}
		for _, oc := range od.Cards {
			c := models.Card{
				ID:             oc.ID,
				English:        oc.English,
				Chinese:        oc.Chinese,
				Note:           oc.Note,
				TotalReviews:   oc.Reviews,
				LastReviewedAt: oc.LastReviewed,
			}
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			c.SetProgress(oc.Progress)
			d.Cards = append(d.Cards, c)
		}
		if od.Queue != nil {
			d.Queue = *od.Queue
		} else {
			for _, c := range d.Cards {
				d.Queue = append(d.Queue, c.ID)
			}
		}
		doc.Decks = append(doc.Decks, d)
	}
	return doc, nil
}

// Normalize repairs a deck in place so it satisfies the model invariants:
// ids are present and unique, counters are non-negative with at most one
// streak running, and the queue only holds known ids once.
func Normalize(d *models.Deck) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Name == "" {
		d.Name = "Untitled"
	}

	seen := make(map[string]bool, len(d.Cards))
	cards := d.Cards[:0]
	for _, c := range d.Cards {
		if c.ID == "" || seen[c.ID] {
			c.ID = uuid.NewString()
		}
		seen[c.ID] = true
		if c.ConsecutiveCorrect < 0 {
			c.ConsecutiveCorrect = 0
		}
		if c.ConsecutiveWrong < 0 {
			c.ConsecutiveWrong = 0
		}
		// Unknown which streak is newer; the wrong one wins so the card comes back sooner.
		if c.ConsecutiveCorrect > 0 && c.ConsecutiveWrong > 0 {
			c.ConsecutiveCorrect = 0
		}
		if c.TotalReviews < 0 {
			c.TotalReviews = 0
		}
		cards = append(cards, c)
	}
	d.Cards = cards

	queued := make(map[string]bool, len(d.Queue))
	queue := make([]string, 0, len(d.Queue))
	for _, id := range d.Queue {
		if !seen[id] || queued[id] {
			continue
		}
		queued[id] = true
		queue = append(queue, id)
	}
	d.Queue = queue
}

// Rekey gives a fresh id to every card for which taken reports true and
// rewrites the queue to match. It returns how many cards were renamed.
func Rekey(d *models.Deck, taken func(cardID string) bool) int {
	renamed := make(map[string]string)
	for i := range d.Cards {
		if !taken(d.Cards[i].ID) {
			continue
		}
		id := uuid.NewString()
		renamed[d.Cards[i].ID] = id
		d.Cards[i].ID = id
	}
	if len(renamed) == 0 {
		return 0
	}
	for i, id := range d.Queue {
		if to, ok := renamed[id]; ok {
			d.Queue[i] = to
		}
	}
	return len(renamed)
}
