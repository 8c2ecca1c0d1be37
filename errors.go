package vecforest

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecforest/blobstore"
	"github.com/hupe1980/vecforest/internal/forest"
	"github.com/hupe1980/vecforest/internal/resource"
	"github.com/hupe1980/vecforest/internal/space"
	"github.com/hupe1980/vecforest/internal/tags"
	"github.com/hupe1980/vecforest/internal/vectorstore"
	"github.com/hupe1980/vecforest/persistence"
)

var (
	// ErrDuplicateID is returned when an id is added twice.
	ErrDuplicateID = errors.New("duplicate item id")
	// ErrNotFound is returned when an item or a stored index does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTag is returned for tag ids outside [0, nTags).
	ErrInvalidTag = errors.New("invalid tag")
	// ErrNotBuilt is returned by queries and saves before Build.
	ErrNotBuilt = errors.New("index not built")
	// ErrAlreadyBuilt is returned by adds and builds after Build. Use Unbuild to reset.
	ErrAlreadyBuilt = errors.New("index already built")
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrInvalidTrees is returned when Build is called with fewer than one tree.
	ErrInvalidTrees = errors.New("number of trees must be positive")
	// ErrEmptyTags is returned by tag queries without tags.
	ErrEmptyTags = errors.New("query tag set is empty")
	// ErrInvalidDimension is returned by New for a non-positive dimension.
	ErrInvalidDimension = errors.New("dimension must be positive")
	// ErrUnsupportedMetric is returned by New for an unknown metric.
	ErrUnsupportedMetric = errors.New("unsupported metric")
	// ErrInvalidOption is returned by New for out-of-range option values.
	ErrInvalidOption = errors.New("invalid option")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("index closed")
	// ErrCorrupt is returned when a stored index fails validation.
	ErrCorrupt = errors.New("corrupt index data")
	// ErrMemoryLimit is returned when an add, build or load would exceed the memory limit.
	ErrMemoryLimit = errors.New("memory limit exceeded")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// translateError maps errors of internal packages onto the exported taxonomy.
// The original error stays reachable through errors.Is and errors.As.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, vectorstore.ErrDuplicateID):
		return fmt.Errorf("%w: %w", ErrDuplicateID, err)
	case errors.Is(err, vectorstore.ErrNotFound), errors.Is(err, blobstore.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, vectorstore.ErrInvalidTag):
		return fmt.Errorf("%w: %w", ErrInvalidTag, err)
	case errors.Is(err, tags.ErrEmpty):
		return fmt.Errorf("%w: %w", ErrEmptyTags, err)
	case errors.Is(err, space.ErrUnsupportedMetric):
		return fmt.Errorf("%w: %w", ErrUnsupportedMetric, err)
	case errors.Is(err, resource.ErrMemoryLimitExceeded):
		return fmt.Errorf("%w: %w", ErrMemoryLimit, err)
	case errors.Is(err, vectorstore.ErrCorrupt),
		errors.Is(err, forest.ErrCorrupt),
		errors.Is(err, persistence.ErrCorrupt),
		errors.Is(err, persistence.ErrInvalidMagic),
		errors.Is(err, persistence.ErrInvalidVersion):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return err
}
