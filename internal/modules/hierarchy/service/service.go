package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/threadfeed/internal/entity"
	"anoa.com/threadfeed/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParentFinder loads a thread by id, soft-deleted rows included.
type ParentFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Thread, error)
}

// Placement is where a new thread sits in its reply tree. It is computed once
// at creation and never recomputed.
type Placement struct {
	RootID *uuid.UUID
	Level  int
	Path   string
}

func (p Placement) Apply(t *entity.Thread, parentID *uuid.UUID) {
	t.ParentID = parentID
	t.RootID = p.RootID
	t.Level = p.Level
	t.Path = p.Path
}

type Builder interface {
	// Place resolves the parent and returns the placement for its new child
	// together with the parent itself. A nil parentID is a top-level thread.
	Place(ctx context.Context, parentID *uuid.UUID) (Placement, *entity.Thread, error)
	// PlaceQuote is always top-level; the quoted thread lives outside the tree.
	PlaceQuote() Placement
}

type builder struct {
	threads ParentFinder
}

func NewBuilder(threads ParentFinder) Builder {
	return &builder{threads: threads}
}

func (b *builder) Place(ctx context.Context, parentID *uuid.UUID) (Placement, *entity.Thread, error) {
	if parentID == nil {
		return TopLevel(), nil, nil
	}

	parent, err := b.threads.FindByID(ctx, *parentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Placement{}, nil, fmt.Errorf("parent thread not found: %w", apperror.ErrNotFound)
		}
		return Placement{}, nil, apperror.Internal(err)
	}
	if parent.IsDeleted {
		return Placement{}, nil, fmt.Errorf("parent thread not found: %w", apperror.ErrNotFound)
	}

	return ChildOf(parent), parent, nil
}

func (b *builder) PlaceQuote() Placement {
	return TopLevel()
}

func TopLevel() Placement {
	return Placement{}
}

// ChildOf derives a child's placement from its parent. The root is taken
// from the parent in one hop, so it is always a top-level thread.
func ChildOf(parent *entity.Thread) Placement {
	root := parent.ID
	if parent.RootID != nil {
		root = *parent.RootID
	}

	path := parent.ID.String()
	if parent.Path != "" {
		path = parent.Path + entity.PathSeparator + path
	}

	return Placement{
		RootID: &root,
		Level:  parent.Level + 1,
		Path:   path,
	}
}
