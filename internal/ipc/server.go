package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"greylit/internal/api"
	"greylit/internal/daemon"
	"greylit/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Greylit", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.RunStats = make(map[string]int, len(status.RunStats))
	for k, v := range status.RunStats {
		resp.RunStats[string(k)] = v
	}
	resp.ActiveRuns = api.FromRuns(status.ActiveRuns)
	return nil
}

func (s *service) Process(req ProcessRequest, resp *ProcessResponse) error {
	if req.SessionID <= 0 {
		return fmt.Errorf("invalid session id %d", req.SessionID)
	}
	s.log().Debug("processing requested",
		logging.Int64(logging.FieldSessionID, req.SessionID),
		logging.Bool("force", req.Force))
	runID, err := s.daemon.Process(s.ctx, req.SessionID, req.Force)
	if err != nil {
		return err
	}
	resp.RunID = runID
	return nil
}

func (s *service) CancelRun(req CancelRunRequest, resp *CancelRunResponse) error {
	if req.RunID <= 0 {
		return fmt.Errorf("invalid run id %d", req.RunID)
	}
	accepted, err := s.daemon.CancelRun(s.ctx, req.RunID)
	if err != nil {
		return err
	}
	resp.Accepted = accepted
	s.log().Info("run cancel requested",
		logging.Int64(logging.FieldRunID, req.RunID),
		logging.Bool("accepted", accepted))
	return nil
}

func (s *service) DescribeRun(req DescribeRunRequest, resp *DescribeRunResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid run id %d", req.ID)
	}
	run, err := s.daemon.DescribeRun(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %d not found", req.ID)
	}
	resp.Run = *run
	return nil
}

func (s *service) ListRuns(req ListRunsRequest, resp *ListRunsResponse) error {
	runs, err := s.daemon.Runs(s.ctx, req.SessionID)
	if err != nil {
		return err
	}
	resp.Runs = runs.Runs
	return nil
}

func (s *service) ListSessions(_ ListSessionsRequest, resp *ListSessionsResponse) error {
	sessions, err := s.daemon.Sessions(s.ctx)
	if err != nil {
		return err
	}
	resp.Sessions = sessions.Sessions
	return nil
}

func (s *service) ListResults(req ListResultsRequest, resp *ListResultsResponse) error {
	if req.SessionID <= 0 {
		return fmt.Errorf("invalid session id %d", req.SessionID)
	}
	results, err := s.daemon.SessionResults(s.ctx, req.SessionID)
	if err != nil {
		return err
	}
	resp.Results = *results
	return nil
}

func (s *service) ImportResults(req ImportResultsRequest, resp *ImportResultsResponse) error {
	sessionID, imported, err := s.daemon.Import(s.ctx, req.SessionID, req.SessionName, req.Payload)
	if err != nil {
		return err
	}
	resp.SessionID = sessionID
	resp.Imported = imported
	s.log().Info("raw results imported via IPC",
		logging.Int64(logging.FieldSessionID, sessionID),
		logging.Int("count", imported))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC")
	return nil
}
