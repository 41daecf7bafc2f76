package catalog

import "context"

// Store is the durable local cache of the catalog graph. It is the only
// source consulted by consumer reads; the remote service is never queried on
// the read path.
//
// Write operations carry replace-on-write semantics: an entity sharing an id
// with a stored record replaces it in place. Records are never deleted.
// Implementations must be safe for concurrent use and must roll back a failed
// batch entirely.
type Store interface {
	// EnsureSchema idempotently prepares the backing tables. Safe to call on
	// every startup.
	EnsureSchema(ctx context.Context) error

	// UpsertCategories writes the given categories atomically: either all of
	// them land or none do.
	UpsertCategories(ctx context.Context, categories []Category) error

	// UpsertQuestions writes one category's questions and their answers as a
	// single transaction scoped to that category. Questions failing
	// ValidQuestion are skipped; the method returns how many were skipped.
	UpsertQuestions(ctx context.Context, categoryID string, questions []Question) (skipped int, err error)

	// ListCategories returns every locally known category, without nested
	// questions.
	ListCategories(ctx context.Context) ([]Category, error)

	// ListQuestions returns one category's questions with nested answers.
	// Ordering is stable across repeated reads absent writes but otherwise
	// unspecified.
	ListQuestions(ctx context.Context, categoryID string) ([]Question, error)
}
