package domain

import "sync"

// SubjectRegistry tracks known subject ids in a thread-safe manner.
// Subjects are registered when the factory creates a market for them
// or when the oracle first receives a score for them.
type SubjectRegistry struct {
	mu       sync.RWMutex
	subjects map[uint64]bool
}

// NewSubjectRegistry creates an empty SubjectRegistry.
func NewSubjectRegistry() *SubjectRegistry {
	return &SubjectRegistry{
		subjects: make(map[uint64]bool),
	}
}

// Register adds a subject to the registry. Safe for concurrent use.
func (r *SubjectRegistry) Register(subjectID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects[subjectID] = true
}

// Exists returns true if the subject has been registered. Safe for concurrent use.
func (r *SubjectRegistry) Exists(subjectID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.subjects[subjectID]
}
