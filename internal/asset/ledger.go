package asset

import (
	"sync"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Ledger tracks which pipeline owns each output path. Pipelines must write
// disjoint paths; a second owner claiming a path is a configuration error.
type Ledger struct {
	mu     sync.Mutex
	owners map[string]string
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{owners: make(map[string]string)}
}

// Claim records owner for every path, failing without recording anything if
// any path already belongs to a different owner.
func (l *Ledger) Claim(owner string, paths []string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range paths {
		if cur, ok := l.owners[p]; ok && cur != owner {
			return ferrors.ConfigError("output path produced by two pipelines").
				WithContext("path", p).
				WithContext("owner", cur).
				WithContext("claimant", owner).
				Build()
		}
	}
	for _, p := range paths {
		l.owners[p] = owner
	}
	return nil
}

// Owner returns the pipeline that claimed path.
func (l *Ledger) Owner(path string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.owners[path]
	return o, ok
}

// Reset forgets every claim; called when the output root is cleaned.
func (l *Ledger) Reset() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.owners = make(map[string]string)
	l.mu.Unlock()
}
