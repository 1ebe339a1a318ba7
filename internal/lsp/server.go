package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"asmlsp/internal/config"
	"asmlsp/internal/document"
	"asmlsp/internal/paths"
	"asmlsp/internal/query"
	"asmlsp/internal/storage"
	"asmlsp/internal/watcher"
	"asmlsp/internal/workspace"
)

// ErrExitWithoutShutdown is returned by Run when the client sends exit
// before shutdown.
var ErrExitWithoutShutdown = errors.New("exit received before shutdown")

// Options configures a Server.
type Options struct {
	Store  storage.Store
	Engine *query.Engine
	Logger *zap.Logger
	// Root overrides the workspace root sent by the client.
	Root string
	// MaxConcurrentRequests bounds the queries answered at once.
	MaxConcurrentRequests int
	// Watch enables reloading when project config files change.
	Watch watcher.Config
}

// Server answers one client over one stream. Notifications are applied in
// receipt order on the read loop; queries run on worker goroutines against
// the snapshots captured when they arrived.
type Server struct {
	opts   Options
	reader *Reader
	writer *Writer
	logger *zap.Logger
	docs   *document.Store
	engine *query.Engine
	sem    *semaphore.Weighted

	// Read loop only.
	initialized bool
	shutdown    bool

	mu      sync.Mutex
	ws      *workspace.Workspace
	watch   *watcher.Watcher
	pending map[string]context.CancelFunc

	wg sync.WaitGroup
}

// NewServer creates a server reading from in and writing to out.
func NewServer(in io.Reader, out io.Writer, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxConcurrentRequests <= 0 {
		opts.MaxConcurrentRequests = 4
	}
	return &Server{
		opts:    opts,
		reader:  NewReader(in),
		writer:  NewWriter(out),
		logger:  opts.Logger,
		docs:    document.NewStore(),
		engine:  opts.Engine,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrentRequests)),
		pending: make(map[string]context.CancelFunc),
	}
}

// Run processes messages until the stream ends or the client exits. A
// knowledge base that cannot be loaded at initialize is fatal; every other
// failure is reported to the client and the loop continues.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
		s.stopWatcher()
	}()

	s.logger.Info("language server starting")
	for {
		msg, err := s.reader.Read()
		if err != nil {
			if err == io.EOF {
				s.logger.Info("language server shutting down (EOF)")
				return nil
			}
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) {
				s.logger.Warn("malformed message", zap.Error(err))
				s.writeError(nullID, rpcErr.Code, rpcErr.Message)
				continue
			}
			s.logger.Error("error reading message", zap.Error(err))
			return err
		}

		switch {
		case msg.IsRequest():
			if err := s.handleRequest(ctx, msg); err != nil {
				return err
			}
		case msg.IsNotification():
			if msg.Method == "exit" {
				if !s.shutdown {
					return ErrExitWithoutShutdown
				}
				return nil
			}
			s.handleNotification(ctx, msg)
		default:
			s.logger.Debug("ignoring message without method", zap.ByteString("id", msg.ID))
		}
	}
}

func (s *Server) currentWorkspace() *workspace.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws
}

// rootFromParams picks the workspace root the client announced.
func rootFromParams(p InitializeParams) string {
	switch {
	case p.RootURI != "":
		return paths.URIToPath(p.RootURI)
	case p.RootPath != "":
		return p.RootPath
	case len(p.WorkspaceFolders) > 0:
		return paths.URIToPath(p.WorkspaceFolders[0].URI)
	}
	return ""
}

// reload rebuilds the workspace and reports problems to the client.
func (s *Server) reload(ctx context.Context) {
	ws := s.currentWorkspace()
	if ws == nil {
		return
	}
	snap, err := ws.Reload(ctx)
	s.reportReload(snap, err)
}

func (s *Server) reportReload(snap *workspace.Snapshot, err error) {
	if err != nil {
		typ := MessageWarning
		if snap == nil {
			typ = MessageError
		}
		s.showMessage(typ, err.Error())
	}
	if snap != nil && snap.Root != nil {
		for _, w := range snap.Root.Warnings {
			s.showMessage(MessageWarning, w)
		}
	}
}

func (s *Server) startWatcher(ctx context.Context, root string) {
	if !s.opts.Watch.Enabled {
		return
	}
	cfg := s.opts.Watch
	cfg.Files = config.ProjectFileNames
	dirs := []string{root}
	if global, err := paths.GetGlobalConfigPath(config.ProjectFileNames[0]); err == nil {
		dirs = append(dirs, filepath.Dir(global))
	}

	w := watcher.New(cfg, s.logger, func(events []watcher.Event) {
		s.logger.Info("project config changed, reloading", zap.Int("events", len(events)))
		s.reload(ctx)
	})
	if err := w.Start(dirs...); err != nil {
		s.logger.Warn("config watcher unavailable", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.watch = w
	s.mu.Unlock()
}

func (s *Server) stopWatcher() {
	s.mu.Lock()
	w := s.watch
	s.watch = nil
	s.mu.Unlock()
	if w != nil {
		if err := w.Stop(); err != nil {
			s.logger.Debug("error stopping watcher", zap.Error(err))
		}
	}
}

func (s *Server) writeResult(id json.RawMessage, result interface{}) {
	if err := s.writer.Write(&response{Jsonrpc: "2.0", ID: id, Result: result}); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(id json.RawMessage, code int, message string) {
	if len(id) == 0 {
		id = nullID
	}
	msg := &errorResponse{Jsonrpc: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	if err := s.writer.Write(msg); err != nil {
		s.logger.Error("failed to write error response", zap.Error(err))
	}
}

func (s *Server) showMessage(typ int, message string) {
	n := &notification{Jsonrpc: "2.0", Method: "window/showMessage", Params: ShowMessageParams{Type: typ, Message: message}}
	if err := s.writer.Write(n); err != nil {
		s.logger.Error("failed to send showMessage", zap.Error(err))
	}
}
