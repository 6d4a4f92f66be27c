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

	"paddock/internal/bundle"
	"paddock/internal/daemon"
	"paddock/internal/logging"
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
	if err := rpcServer.RegisterName("Paddock", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logging.NewComponentLogger(logger, "ipc"),
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon"),
				)
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
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

// service implements the RPC surface forwarded to the daemon.
type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// Status returns combined daemon and store status.
func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.daemon.Status(s.ctx)
	if err != nil {
		return err
	}
	stats := map[string]int{
		string(bundle.StatusAccumulating): status.Health.Accumulating,
		string(bundle.StatusReady):        status.Health.Ready,
		string(bundle.StatusProcessing):   status.Health.Processing,
		string(bundle.StatusDone):         status.Health.Done,
		string(bundle.StatusFailed):       status.Health.Failed,
	}
	*resp = StatusResponse{
		Running:      status.Running,
		BundleStats:  stats,
		CarDir:       status.CarDir,
		InboxDir:     status.InboxDir,
		BundleDBPath: status.BundleDBPath,
		LockPath:     status.LockFilePath,
		PID:          os.Getpid(),
	}
	return nil
}

// SessionsList returns bundle rows filtered by optional statuses.
func (s *service) SessionsList(req SessionsListRequest, resp *SessionsListResponse) error {
	statuses := make([]bundle.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		status, ok := bundle.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, status)
	}

	rows, err := s.daemon.ListSessions(s.ctx, statuses)
	if err != nil {
		return err
	}
	sessions := make([]Session, 0, len(rows))
	for _, b := range rows {
		sessions = append(sessions, Session{
			SessionKey:   b.SessionKey,
			Status:       string(b.Status),
			FileCount:    b.FileCount,
			FirstSeenAt:  b.FirstSeenAt,
			LastSeenAt:   b.LastSeenAt,
			ErrorMessage: b.ErrorMessage,
			LastPassID:   b.LastPassID,
		})
	}
	resp.Sessions = sessions
	return nil
}

// Retry resets failed bundles for reprocessing.
func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	updated, err := s.daemon.Retry(s.ctx, req.SessionKeys)
	if err != nil {
		return err
	}
	resp.Updated = updated
	return nil
}

// ClearDone removes done bundle rows.
func (s *service) ClearDone(_ ClearDoneRequest, resp *ClearDoneResponse) error {
	removed, err := s.daemon.ClearDone(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}
