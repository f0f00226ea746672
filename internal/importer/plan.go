package importer

import (
	"fmt"

	"github.com/google/uuid"

	"catalog-service/internal/models"
)

// Ref points at either an existing catalog entity or a pending candidate in
// the plan's arena. Candidates get real identifiers only at commit time, in
// dependency order.
type Ref struct {
	ID        uuid.UUID
	Candidate int
}

// ExistingRef references an entity already in the catalog
func ExistingRef(id uuid.UUID) Ref { return Ref{ID: id, Candidate: -1} }

// CandidateRef references a pending entity by arena index
func CandidateRef(idx int) Ref { return Ref{Candidate: idx} }

func (r Ref) IsCandidate() bool { return r.Candidate >= 0 }

func (r Ref) key() string {
	if r.IsCandidate() {
		return fmt.Sprintf("cand:%d", r.Candidate)
	}
	return r.ID.String()
}

// Pending is an entity proposed during resolution but not yet persisted.
// Parent references the pending/existing node one level up (category chain,
// or the owning category for a series).
type Pending struct {
	Type      models.CandidateType
	Name      string
	Slug      string
	Parent    *Ref
	MatchedID *uuid.UUID // set when late resolution matched an existing entity
	Row       int        // first row that proposed this candidate
	Sheet     string
}

// Arena holds pending candidates and hands out index-based references so a
// series candidate can point at a category candidate that has no id yet.
type Arena struct {
	items []*Pending
}

func (a *Arena) Add(p *Pending) int {
	a.items = append(a.items, p)
	return len(a.items) - 1
}

func (a *Arena) Get(idx int) *Pending { return a.items[idx] }

func (a *Arena) Items() []*Pending { return a.items }

// Action is the reconciler's per-row decision
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// ProductOp is the reconciled intent for one Products row
type ProductOp struct {
	Row        int
	Action     Action
	Target     Ref // the product itself: existing id or arena candidate
	Brand      Ref
	Categories []Ref // resolved chain, root first, leaf last
	Series     Ref
	Existing   *models.Product
	New        models.Product         // field values for create
	Updates    map[string]interface{} // differing scalar columns for update
}

// VariantOp is the reconciled intent for one Variants row
type VariantOp struct {
	Row      int
	Action   Action
	Product  Ref
	Existing *models.Variant
	New      models.Variant
	Updates  map[string]interface{}
}

// Plan is the full reconciled output of one validate (or commit replay)
// pass: the candidate arena, per-row intents, and aggregated issues. It is
// job-local and rebuilt deterministically from the snapshot at commit time.
type Plan struct {
	Arena    Arena
	Products []ProductOp
	Variants []VariantOp
	Issues   []models.RowIssue

	errorRows map[string]bool
}

func (p *Plan) addIssue(issue models.RowIssue) {
	p.Issues = append(p.Issues, issue)
	if issue.Severity == models.SeverityError {
		if p.errorRows == nil {
			p.errorRows = make(map[string]bool)
		}
		p.errorRows[fmt.Sprintf("%s:%d", issue.Sheet, issue.Row)] = true
	}
}

// RowHasError reports whether a sheet row collected at least one error
func (p *Plan) RowHasError(sheet string, row int) bool {
	return p.errorRows[fmt.Sprintf("%s:%d", sheet, row)]
}

// HasErrors reports whether any row in the plan errored
func (p *Plan) HasErrors() bool { return len(p.errorRows) > 0 }

// Counts aggregates planned outcomes for the report
func (p *Plan) Counts(totalRows int) models.ReportCounts {
	counts := models.ReportCounts{TotalRows: totalRows}
	for _, op := range p.Products {
		switch op.Action {
		case ActionCreate:
			counts.Creates++
		case ActionUpdate:
			counts.Updates++
		case ActionSkip:
			counts.Skips++
		}
	}
	for _, op := range p.Variants {
		switch op.Action {
		case ActionCreate:
			counts.Creates++
		case ActionUpdate:
			counts.Updates++
		case ActionSkip:
			counts.Skips++
		}
	}
	counts.Errors = len(p.errorRows)
	for _, issue := range p.Issues {
		if issue.Severity == models.SeverityWarning {
			counts.Warnings++
		}
	}
	return counts
}

// Candidates converts the arena into report candidates. A candidate whose
// parent is itself pending carries the parent's slug instead of an id.
// Arena entries no surviving op references are omitted: commit walks the
// ops, never the arena, so it would not create them.
func (p *Plan) Candidates() []models.Candidate {
	reachable := p.reachableCandidates()
	out := make([]models.Candidate, 0, len(p.Arena.items))
	for i, pending := range p.Arena.items {
		if !reachable[i] {
			continue
		}
		c := models.Candidate{
			EntityType: pending.Type,
			Name:       pending.Name,
			Slug:       pending.Slug,
			Matched:    pending.MatchedID != nil,
			MatchedID:  pending.MatchedID,
		}
		if pending.Parent != nil {
			if pending.Parent.IsCandidate() {
				c.ParentSlug = p.Arena.Get(pending.Parent.Candidate).Slug
			} else {
				id := pending.Parent.ID
				c.ParentID = &id
			}
		}
		out = append(out, c)
	}
	return out
}

// reachableCandidates marks every arena index some op still points at,
// following candidate parent chains. An entry can go unreferenced when the
// row that proposed it errored on a later field, or when an existing
// series' category replaced a candidate chain leaf.
func (p *Plan) reachableCandidates() map[int]bool {
	seen := make(map[int]bool, len(p.Arena.items))
	var mark func(r Ref)
	mark = func(r Ref) {
		if !r.IsCandidate() || seen[r.Candidate] {
			return
		}
		seen[r.Candidate] = true
		if parent := p.Arena.Get(r.Candidate).Parent; parent != nil {
			mark(*parent)
		}
	}
	for i := range p.Products {
		op := &p.Products[i]
		mark(op.Target)
		mark(op.Brand)
		for _, ref := range op.Categories {
			mark(ref)
		}
		mark(op.Series)
	}
	for i := range p.Variants {
		mark(p.Variants[i].Product)
	}
	return seen
}
