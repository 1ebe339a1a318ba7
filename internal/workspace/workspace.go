// Package workspace owns the configuration and knowledge base of one
// workspace root and swaps both atomically on reload.
package workspace

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"asmlsp/internal/config"
	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/kb"
	"asmlsp/internal/storage"
)

// Snapshot is one consistent view of configuration and knowledge base.
// It is never mutated after publication.
type Snapshot struct {
	// Root is nil when no project config applies.
	Root       *config.RootConfig
	KB         *kb.KnowledgeBase
	Generation string
	LoadedAt   time.Time
}

// Effective resolves the configuration for the document at path.
func (s *Snapshot) Effective(path string) config.Effective {
	return s.Root.Resolve(path)
}

// Workspace is safe for concurrent use. Readers call Snapshot; Reload
// publishes a replacement.
type Workspace struct {
	root   string
	store  storage.Store
	logger *zap.Logger

	reloadMu sync.Mutex
	current  atomic.Pointer[Snapshot]
}

// New creates a workspace. Nothing is loaded until Reload.
func New(root string, store storage.Store, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{root: root, store: store, logger: logger}
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// Snapshot returns the current view. Before the first successful Reload it
// is an empty knowledge base under the open default.
func (w *Workspace) Snapshot() *Snapshot {
	if s := w.current.Load(); s != nil {
		return s
	}
	return &Snapshot{KB: kb.Empty()}
}

// Reload re-reads the project config and rebuilds the knowledge base.
//
// An invalid config keeps the previous config (or the open default on the
// first load); the knowledge base is still rebuilt and the ConfigError is
// returned alongside the new snapshot. A knowledge base that cannot be
// loaded at all leaves the current snapshot in place and returns a nil
// snapshot.
func (w *Workspace) Reload(ctx context.Context) (*Snapshot, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	prev := w.current.Load()
	rc, cfgErr := config.LoadRootConfig(w.root, w.logger)
	if cfgErr != nil {
		w.logger.Warn("project config rejected, keeping previous",
			zap.String("root", w.root), zap.Error(cfgErr))
		rc = nil
		if prev != nil {
			rc = prev.Root
		}
	}

	arches, asms := rc.Selection()
	base, err := kb.Load(ctx, w.store, kb.Selection{Arches: arches, Assemblers: asms}, w.logger)
	if err != nil {
		if asmerrors.IsCode(err, asmerrors.StoreError) {
			w.logger.Error("knowledge base unavailable", zap.Error(err))
		}
		return nil, err
	}

	snap := &Snapshot{
		Root:       rc,
		KB:         base,
		Generation: uuid.NewString(),
		LoadedAt:   time.Now(),
	}
	w.current.Store(snap)

	source := config.SourceOpen
	if rc != nil {
		source = rc.Source
	}
	w.logger.Info("workspace loaded",
		zap.String("root", w.root),
		zap.String("config", source),
		zap.String("generation", snap.Generation),
		zap.Int("degradedKinds", len(base.Degraded)))
	return snap, cfgErr
}

// Effective resolves the configuration for a document against the current
// snapshot.
func (w *Workspace) Effective(path string) config.Effective {
	return w.Snapshot().Effective(path)
}
