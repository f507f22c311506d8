// Package transcript assembles enriched records into the conversation
// history delivered to the CRM, as a PDF or as a plain-text note.
package transcript

import (
	"sort"
	"time"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
)

// Counts holds the number of records per kind.
type Counts struct {
	Text  int
	Image int
	Audio int
	File  int
}

// Total returns the number of records.
func (c Counts) Total() int {
	return c.Text + c.Image + c.Audio + c.File
}

// Document is a chronologically ordered conversation ready for rendering.
type Document struct {
	Contact     domain.ContactProfile
	Records     []domain.EnrichedRecord
	Counts      Counts
	GeneratedAt time.Time
}

// Assembler orders records and renders documents in a fixed timezone.
type Assembler struct {
	loc *time.Location
	now func() time.Time
}

func NewAssembler(loc *time.Location) *Assembler {
	if loc == nil {
		loc = time.UTC
	}

	return &Assembler{loc: loc, now: time.Now}
}

// Assemble sorts records by creation time. Ties are broken by kind and then
// id, so the result does not depend on the input order.
func (a *Assembler) Assemble(records []domain.EnrichedRecord, contact domain.ContactProfile) Document {
	sorted := make([]domain.EnrichedRecord, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i], sorted[j]
		if ri.CreatedAt != rj.CreatedAt {
			return ri.CreatedAt < rj.CreatedAt
		}

		if ri.Kind.Order() != rj.Kind.Order() {
			return ri.Kind.Order() < rj.Kind.Order()
		}

		return ri.ID < rj.ID
	})

	return Document{
		Contact:     contact,
		Records:     sorted,
		Counts:      count(sorted),
		GeneratedAt: a.now().In(a.loc),
	}
}

func count(records []domain.EnrichedRecord) Counts {
	var c Counts

	for _, rec := range records {
		switch rec.Kind {
		case domain.KindText:
			c.Text++
		case domain.KindImage:
			c.Image++
		case domain.KindAudio:
			c.Audio++
		case domain.KindFile:
			c.File++
		}
	}

	return c
}
