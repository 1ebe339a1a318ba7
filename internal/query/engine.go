// Package query answers hover, completion and signature-help requests
// against a loaded knowledge base.
package query

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"asmlsp/internal/config"
	"asmlsp/internal/kb"
	"asmlsp/internal/token"
)

// DefaultCacheSize is the number of completion results kept when the
// configured size is not positive.
const DefaultCacheSize = 256

// Request is one query against one line of a document. Col is a byte offset
// into Line.
type Request struct {
	Line string
	Col  int

	Config config.Effective
	KB     *kb.KnowledgeBase
	// Generation identifies the knowledge base snapshot for caching.
	Generation string
}

func (r Request) filter() kb.Filter {
	return kb.Filter{Arches: r.Config.ArchSet(), Assemblers: r.Config.Assemblers}
}

func (r Request) dialect() token.Dialect {
	return token.DialectFor(r.Config.Assemblers...)
}

type completionKey struct {
	generation  string
	fingerprint string
	prefix      string
}

// Engine is safe for concurrent use. It holds no knowledge base of its own;
// every request carries the snapshot it runs against.
type Engine struct {
	logger      *zap.Logger
	completions *lru.Cache[completionKey, []CompletionItem]
}

// NewEngine creates an engine whose completion cache holds cacheSize entries.
func NewEngine(cacheSize int, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[completionKey, []CompletionItem](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{logger: logger, completions: cache}, nil
}

// Purge drops every cached completion result.
func (e *Engine) Purge() {
	e.completions.Purge()
}
