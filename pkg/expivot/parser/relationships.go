package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Relationship type suffixes matched against the last segment of the type URI.
const (
	RelOfficeDocument       = "officeDocument"
	RelWorksheet            = "worksheet"
	RelPivotTable           = "pivotTable"
	RelPivotCacheDefinition = "pivotCacheDefinition"
	RelPivotCacheRecords    = "pivotCacheRecords"
)

// Relationship is one edge declared in a .rels part.
type Relationship struct {
	// Owner is the part that declares the edge; empty for the package root.
	Owner string
	// ID is the relationship id (r:id).
	ID string
	// Target is the resolved package path of the target part.
	Target string
	// Type is the relationship type URI.
	Type string
	// External is set for TargetMode="External"; Target is then left as written.
	External bool
}

// Is reports whether the relationship type ends with the given suffix.
func (r Relationship) Is(suffix string) bool {
	i := strings.LastIndex(r.Type, "/")
	return r.Type[i+1:] == suffix
}

// Resolver resolves relationship edges of package parts. Results are
// memoized per owner, so a Resolver should live for one discovery pass.
// It is not safe for concurrent use.
type Resolver struct {
	archive Archive
	memo    map[string][]Relationship
}

// NewResolver creates a Resolver over the archive.
func NewResolver(archive Archive) *Resolver {
	return &Resolver{
		archive: archive,
		memo:    make(map[string][]Relationship),
	}
}

// Relationships returns the edges declared by owner. An owner without a rels
// part has no edges. Use "" for the package root relationships.
func (r *Resolver) Relationships(owner string) ([]Relationship, error) {
	owner = strings.TrimPrefix(owner, "/")
	if rels, ok := r.memo[owner]; ok {
		return rels, nil
	}

	relsPath := RelsPath(owner)
	rc, err := r.archive.Open(relsPath)
	if err != nil {
		if errors.Is(err, ErrPartNotFound) {
			r.memo[owner] = nil
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	rels, err := parseRelationships(rc, owner)
	if err != nil {
		return nil, NewPartError(relsPath, err)
	}
	r.memo[owner] = rels
	return rels, nil
}

// ByType returns the internal edges of owner whose type ends with suffix.
func (r *Resolver) ByType(owner, suffix string) ([]Relationship, error) {
	rels, err := r.Relationships(owner)
	if err != nil {
		return nil, err
	}
	var result []Relationship
	for _, rel := range rels {
		if !rel.External && rel.Is(suffix) {
			result = append(result, rel)
		}
	}
	return result, nil
}

// ByID returns the edge of owner with the given id.
func (r *Resolver) ByID(owner, id string) (Relationship, bool, error) {
	rels, err := r.Relationships(owner)
	if err != nil {
		return Relationship{}, false, err
	}
	for _, rel := range rels {
		if rel.ID == id {
			return rel, true, nil
		}
	}
	return Relationship{}, false, nil
}

// RelsPath returns the companion relationships part of owner,
// e.g. xl/worksheets/sheet1.xml -> xl/worksheets/_rels/sheet1.xml.rels.
func RelsPath(owner string) string {
	if owner == "" {
		return "_rels/.rels"
	}
	dir, base := path.Split(owner)
	return dir + "_rels/" + base + ".rels"
}

// ResolveTarget resolves a relationship target against the owner's folder.
func ResolveTarget(owner, target string) string {
	target = strings.ReplaceAll(target, "\\", "/")
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	resolved := path.Clean(path.Join(path.Dir(owner), target))
	return strings.TrimPrefix(resolved, "/")
}

// parseRelationships decodes a .rels part. Any decoding problem, including a
// Relationship without Id or Target, yields ErrMalformedRelationships.
func parseRelationships(r io.Reader, owner string) ([]Relationship, error) {
	decoder := newDecoder(r)
	var result []Relationship
	sawRoot := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformedRels(err)
		}
		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "Relationships":
			sawRoot = true
		case "Relationship":
			id, _ := attr(se, "Id")
			target, _ := attr(se, "Target")
			relType, _ := attr(se, "Type")
			mode, _ := attr(se, "TargetMode")
			if id == "" || target == "" {
				return nil, malformedRels(errors.New("Relationship without Id or Target"))
			}
			rel := Relationship{
				Owner:    owner,
				ID:       id,
				Type:     relType,
				External: strings.EqualFold(mode, "External"),
			}
			if rel.External {
				rel.Target = target
			} else {
				rel.Target = ResolveTarget(owner, target)
			}
			result = append(result, rel)
		}
	}

	if !sawRoot {
		return nil, malformedRels(errors.New("no Relationships element"))
	}
	return result, nil
}

func malformedRels(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedRelationships, err)
}
