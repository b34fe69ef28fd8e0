package rag

import (
	"sort"
	"sync"
)

// SessionRegistry tracks the file names of documents ingested during the
// current session. It is the fast path for duplicate checks and listings;
// the vector store remains the source of truth and Reconcile resyncs from
// a store scan.
type SessionRegistry struct {
	mu    sync.RWMutex
	files map[string]bool
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{files: make(map[string]bool)}
}

// Add records a file name. Re-adding an existing name is a no-op.
func (r *SessionRegistry) Add(fileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[fileName] = true
}

// Remove forgets a file name. Removing an absent name is a no-op.
func (r *SessionRegistry) Remove(fileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, fileName)
}

// Contains reports whether the file name is registered.
func (r *SessionRegistry) Contains(fileName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.files[fileName]
}

// List returns the registered file names sorted lexically.
func (r *SessionRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.files))
	for name := range r.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered files.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

// Clear forgets every file name.
func (r *SessionRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = make(map[string]bool)
}

// Reconcile replaces the registry contents with the given file names,
// typically the result of a vector store scan.
func (r *SessionRegistry) Reconcile(fileNames []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.files = make(map[string]bool, len(fileNames))
	for _, name := range fileNames {
		if name != "" {
			r.files[name] = true
		}
	}
}
