// Package serve implements a line-delimited JSON protocol for merging
// annotation files from another process.
package serve

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/praetorian-inc/annomerge/pkg/annotation"
	"github.com/praetorian-inc/annomerge/pkg/loader"
	"github.com/praetorian-inc/annomerge/pkg/types"
	"github.com/praetorian-inc/annomerge/pkg/xmlanno"
)

// Version is the server protocol version
const Version = "1.0.0"

// Options configures a Server.
type Options struct {
	Loader *loader.Loader // Parse cache shared across requests (nil creates one)
	Logger *zap.Logger
}

// maxLineSize bounds one request line; merge requests carry whole documents.
const maxLineSize = 64 << 20

// Server merges annotation files sent over a stream.
type Server struct {
	loader  *loader.Loader
	logger  *zap.Logger
	encoder *json.Encoder
	scanner *bufio.Scanner
}

// NewServer creates a new streaming server
func NewServer(in io.Reader, out io.Writer, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	l := opts.Loader
	if l == nil {
		var err error
		l, err = loader.New(loader.Options{Logger: logger})
		if err != nil {
			return nil, err
		}
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Server{
		loader:  l,
		logger:  logger,
		encoder: json.NewEncoder(out),
		scanner: scanner,
	}, nil
}

// Run starts the server main loop. It returns nil when the input ends or a
// close request arrives, and the context error when ctx is cancelled.
// A line that is not a valid request gets a "decode" error response and
// the loop continues.
func (s *Server) Run(ctx context.Context) error {
	// Send ready signal
	s.sendReady()

	// Stops the reader once Run returns for any reason.
	readerCtx, stop := context.WithCancel(ctx)
	defer stop()

	// Lines are handed over one at a time; errChan carries the scanner's
	// final error (nil at EOF).
	lineChan := make(chan []byte)
	errChan := make(chan error, 1)

	go func() {
		for s.scanner.Scan() {
			line := append([]byte(nil), s.scanner.Bytes()...)
			select {
			case lineChan <- line:
			case <-readerCtx.Done():
				return
			}
		}
		errChan <- s.scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			if err != nil {
				s.sendError("decode", err.Error())
			}
			return nil
		case line := <-lineChan:
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var req Request
			if err := json.Unmarshal(line, &req); err != nil {
				s.sendError("decode", err.Error())
				continue
			}
			if s.processRequest(req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(req Request) bool {
	s.logger.Debug("request", zap.String("type", req.Type))

	switch req.Type {
	case TypeMerge:
		s.handleMerge(req.Payload)
	case TypeParse:
		s.handleParse(req.Payload)
	case TypeClose:
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) sendReady() {
	s.send(TypeReady, ReadyData{Version: Version})
}

func (s *Server) handleMerge(payload json.RawMessage) {
	var p MergePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(TypeMerge, err.Error())
		return
	}

	data, err := s.merge(p)
	if err != nil {
		s.sendError(TypeMerge, err.Error())
		return
	}
	s.send(TypeMerge, data)
}

func (s *Server) merge(p MergePayload) (*MergeData, error) {
	format := p.Format
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatXML {
		return nil, fmt.Errorf("unsupported format %q (want json or xml)", format)
	}

	files := make([]*types.AnnotationFile, 0, len(p.Files))
	for i, in := range p.Files {
		uri := in.URI
		if uri == "" {
			uri = fmt.Sprintf("file%d.xml", i)
		}
		file, err := s.loader.Parse(uri, []byte(in.Content))
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	merged, report := annotation.Merge(files, annotation.Options{Logger: s.logger})
	if !p.Targets.IsEmpty() {
		filtered, err := annotation.FilterTargets(merged, p.Targets)
		if err != nil {
			return nil, err
		}
		merged = filtered
	}

	data := &MergeData{Format: format, Report: report}
	if format == FormatXML {
		out, err := xmlanno.Marshal(merged, xmlanno.WriteOptions{Namespace: p.Namespace})
		if err != nil {
			return nil, fmt.Errorf("writing merged annotations: %w", err)
		}
		data.XML = string(out)
	} else {
		data.File = merged
	}
	return data, nil
}

func (s *Server) handleParse(payload json.RawMessage) {
	var p ParsePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(TypeParse, err.Error())
		return
	}

	file, err := s.loader.Parse(p.URI, []byte(p.Content))
	if err != nil {
		s.sendError(TypeParse, err.Error())
		return
	}
	s.send(TypeParse, file)
}

func (s *Server) send(respType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.sendError(respType, err.Error())
		return
	}
	if err := s.encoder.Encode(Response{
		Success: true,
		Type:    respType,
		Data:    data,
	}); err != nil {
		s.logger.Warn("failed to write response", zap.String("type", respType), zap.Error(err))
	}
}

func (s *Server) sendError(reqType, msg string) {
	s.logger.Debug("request failed", zap.String("type", reqType), zap.String("error", msg))
	s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   msg,
	})
}
