package importer

import (
	"fmt"
	"strings"
)

// PathDelimiter separates category levels inside the Category column
const PathDelimiter = "/"

// resolveError is a row-scoped resolution failure carrying the issue code
// the reconciler attaches to the report.
type resolveError struct {
	Code    string
	Field   string
	Message string
}

func (e *resolveError) Error() string { return e.Message }

// HierarchyBuilder resolves a delimited category path into a chain of
// category resolution steps, reusing existing nodes per level and proposing
// candidates for missing segments.
type HierarchyBuilder struct {
	resolver *Resolver
	// SplitPath controls whether "/" denotes nesting; when false the whole
	// path string is a single category name
	SplitPath bool
	// AllowCreate controls missing-category auto-creation; when false an
	// unmatched segment is a hard error even in smart mode
	AllowCreate bool
	// Smart allows unmatched segments to become candidates at all
	Smart bool
}

func NewHierarchyBuilder(resolver *Resolver, splitPath, allowCreate, smart bool) *HierarchyBuilder {
	return &HierarchyBuilder{resolver: resolver, SplitPath: splitPath, AllowCreate: allowCreate, Smart: smart}
}

// Resolve walks the path top-down. Each segment resolves within the scope
// of the previous step's node, which may itself still be a candidate.
func (b *HierarchyBuilder) Resolve(path string, row int) ([]Ref, *resolveError) {
	segments := b.splitSegments(path)
	if len(segments) == 0 {
		return nil, &resolveError{Code: "REQUIRED", Field: "Category", Message: "Category is required"}
	}

	chain := make([]Ref, 0, len(segments))
	var parent *Ref
	for _, segment := range segments {
		if id, ok := b.resolver.FindCategory(parent, segment); ok {
			ref := ExistingRef(id)
			chain = append(chain, ref)
			parent = &ref
			continue
		}
		if !b.Smart {
			return nil, &resolveError{
				Code:    "UNRESOLVED_CATEGORY",
				Field:   "Category",
				Message: fmt.Sprintf("category %q does not exist", segment),
			}
		}
		if !b.AllowCreate {
			return nil, &resolveError{
				Code:    "CATEGORY_NOT_FOUND",
				Field:   "Category",
				Message: fmt.Sprintf("category %q does not exist and auto-creation is disabled", segment),
			}
		}
		ref := b.resolver.CandidateCategory(parent, segment, row)
		chain = append(chain, ref)
		parent = &ref
	}
	return chain, nil
}

func (b *HierarchyBuilder) splitSegments(path string) []string {
	if !b.SplitPath {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}
	var segments []string
	for _, raw := range strings.Split(path, PathDelimiter) {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}
