package types

// Mergeable is implemented by every entity that takes part in cloud merge.
type Mergeable interface {
	GetID() string
	GetUpdatedAt() int64
}

// MergeResult is the plan produced by reconciling local vs. remote entity
// sets: remote-only entities are added, remotely newer ones updated, entities
// gone (or tombstoned) remotely are deleted locally.
type MergeResult[T Mergeable] struct {
	ToAdd    []T
	ToUpdate []T
	ToDelete []T
}

// Empty reports whether the merge plan contains no work.
func (r MergeResult[T]) Empty() bool {
	return len(r.ToAdd) == 0 && len(r.ToUpdate) == 0 && len(r.ToDelete) == 0
}
