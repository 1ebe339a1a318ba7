package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"asmlsp/internal/document"
	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/paths"
	"asmlsp/internal/query"
	"asmlsp/internal/token"
	"asmlsp/internal/version"
	"asmlsp/internal/workspace"
)

// handleRequest answers a request. Queries are answered asynchronously; a
// non-nil error is fatal to the server.
func (s *Server) handleRequest(ctx context.Context, msg *Message) error {
	s.logger.Debug("handling request", zap.String("method", msg.Method), zap.ByteString("id", msg.ID))

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(ctx, msg)
	case "shutdown":
		s.shutdown = true
		s.writeResult(msg.ID, nil)
		return nil
	}

	if !s.initialized {
		s.writeError(msg.ID, ServerNotInitialized, "server not initialized")
		return nil
	}
	if s.shutdown {
		s.writeError(msg.ID, InvalidRequest, "server is shutting down")
		return nil
	}

	switch msg.Method {
	case "textDocument/hover", "textDocument/completion", "textDocument/signatureHelp":
		s.dispatchQuery(ctx, msg)
	default:
		s.writeError(msg.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", msg.Method))
	}
	return nil
}

func (s *Server) handleInitialize(ctx context.Context, msg *Message) error {
	if s.initialized {
		s.writeError(msg.ID, InvalidRequest, "server already initialized")
		return nil
	}
	var params InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.writeError(msg.ID, InvalidParams, "invalid initialize params: "+err.Error())
			return nil
		}
	}

	root := s.opts.Root
	if root == "" {
		root = rootFromParams(params)
	}
	ws := workspace.New(root, s.opts.Store, s.logger)
	snap, err := ws.Reload(ctx)
	if snap == nil {
		s.writeError(msg.ID, InternalError, "knowledge base unavailable: "+err.Error())
		return err
	}

	s.mu.Lock()
	s.ws = ws
	s.mu.Unlock()
	s.initialized = true

	s.writeResult(msg.ID, InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: 2,
			HoverProvider:    true,
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{".", "%", "$"},
			},
			SignatureHelpProvider: &SignatureHelpOptions{
				TriggerCharacters: []string{" ", ","},
			},
		},
		ServerInfo: ServerInfo{Name: "asmlsp", Version: version.Version},
	})
	s.reportReload(snap, err)
	s.startWatcher(ctx, root)

	s.logger.Info("client initialized", zap.String("root", root))
	return nil
}

func (s *Server) handleNotification(ctx context.Context, msg *Message) {
	s.logger.Debug("handling notification", zap.String("method", msg.Method))

	switch msg.Method {
	case "initialized":
	case "textDocument/didOpen":
		var p DidOpenTextDocumentParams
		if s.decode(msg, &p) {
			s.docs.Open(p.TextDocument.URI, p.TextDocument.Version, p.TextDocument.Text)
		}
	case "textDocument/didChange":
		var p DidChangeTextDocumentParams
		if s.decode(msg, &p) {
			if _, err := s.docs.Change(p.TextDocument.URI, p.TextDocument.Version, p.ContentChanges); err != nil {
				s.logger.Warn("change rejected", zap.String("uri", p.TextDocument.URI), zap.Error(err))
			}
		}
	case "textDocument/didClose":
		var p DidCloseTextDocumentParams
		if s.decode(msg, &p) {
			s.docs.Close(p.TextDocument.URI)
		}
	case "workspace/didChangeConfiguration":
		s.reload(ctx)
	case "$/cancelRequest":
		var p CancelParams
		if s.decode(msg, &p) {
			s.mu.Lock()
			cancel, ok := s.pending[string(p.ID)]
			s.mu.Unlock()
			if ok {
				cancel()
			}
		}
	default:
		if !strings.HasPrefix(msg.Method, "$/") {
			s.logger.Debug("unknown notification", zap.String("method", msg.Method))
		}
	}
}

func (s *Server) decode(msg *Message, v interface{}) bool {
	if err := json.Unmarshal(msg.Params, v); err != nil {
		s.logger.Warn("invalid notification params", zap.String("method", msg.Method), zap.Error(err))
		return false
	}
	return true
}

// dispatchQuery captures the document and workspace snapshots on the read
// loop and answers on a worker.
func (s *Server) dispatchQuery(ctx context.Context, msg *Message) {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.writeError(msg.ID, InvalidParams, "invalid position params: "+err.Error())
		return
	}
	doc, ok := s.docs.Snapshot(params.TextDocument.URI)
	if !ok {
		s.writeResult(msg.ID, nil)
		return
	}
	line, col, ok := doc.Locate(params.Position)
	if !ok {
		s.writeResult(msg.ID, nil)
		return
	}
	snap := s.currentWorkspace().Snapshot()
	req := query.Request{
		Line:       line,
		Col:        col,
		Config:     snap.Effective(paths.URIToPath(params.TextDocument.URI)),
		KB:         snap.KB,
		Generation: snap.Generation,
	}

	reqCtx, cancel := context.WithCancel(ctx)
	key := string(msg.ID)
	s.mu.Lock()
	s.pending[key] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.pending, key)
			s.mu.Unlock()
			cancel()
		}()

		if err := s.sem.Acquire(reqCtx, 1); err != nil {
			s.writeError(msg.ID, RequestCancelled, "request cancelled")
			return
		}
		defer s.sem.Release(1)

		result, err := s.runQuery(reqCtx, msg.Method, req, params.Position.Line)
		s.reply(msg.ID, result, err)
	}()
}

func (s *Server) reply(id json.RawMessage, result interface{}, err error) {
	switch {
	case err == nil:
		s.writeResult(id, result)
	case asmerrors.IsMiss(err):
		s.writeResult(id, nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeError(id, RequestCancelled, "request cancelled")
	default:
		s.logger.Warn("query failed", zap.Error(err))
		s.writeError(id, RequestFailed, err.Error())
	}
}

func (s *Server) runQuery(ctx context.Context, method string, req query.Request, line int) (interface{}, error) {
	switch method {
	case "textDocument/hover":
		h, err := s.engine.Hover(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Hover{
			Contents: MarkupContent{Kind: "markdown", Value: h.Contents},
			Range: &document.Range{
				Start: document.Position{Line: line, Character: document.UTF16Offset(req.Line, h.Token.Start)},
				End:   document.Position{Line: line, Character: document.UTF16Offset(req.Line, h.Token.End)},
			},
		}, nil

	case "textDocument/completion":
		items, err := s.engine.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		list := &CompletionList{Items: make([]CompletionItem, 0, len(items))}
		for _, it := range items {
			list.Items = append(list.Items, CompletionItem{Label: it.Label, Kind: completionKind(it.Kind), Detail: it.Detail})
		}
		return list, nil

	case "textDocument/signatureHelp":
		help, err := s.engine.SignatureHelp(ctx, req)
		if err != nil {
			return nil, err
		}
		out := &SignatureHelp{ActiveSignature: help.ActiveSignature, ActiveParameter: help.ActiveParameter}
		for _, sig := range help.Signatures {
			info := SignatureInformation{Label: sig.Label, Documentation: sig.Documentation, Parameters: []ParameterInformation{}}
			for _, p := range sig.Parameters {
				info.Parameters = append(info.Parameters, ParameterInformation{Label: p})
			}
			out.Signatures = append(out.Signatures, info)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported method %s", method)
}

func completionKind(k token.Kind) int {
	switch k {
	case token.KindInstruction:
		return CompletionKindFunction
	case token.KindRegister:
		return CompletionKindVariable
	default:
		return CompletionKindKeyword
	}
}
