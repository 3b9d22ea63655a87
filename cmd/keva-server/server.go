package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"keva.lopezb.com/internal/keva/resp"
)

const (
	rejectionTimeout          = 500 * time.Millisecond
	errMaxConnectionsResponse = "-max number of clients reached\r\n"
	errRateLimitResponse      = "-connection rate limit exceeded\r\n"
)

// listen opens the TCP listener with SO_REUSEADDR and SO_REUSEPORT set, so
// restarts don't trip over TIME_WAIT sockets and multiple server processes
// can share a port when the host wants them to.
func (app *application) listen() error {
	lc := net.ListenConfig{
		Control: func(network, address string, conn syscall.RawConn) error {
			var sockErr error
			err := conn.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if sockErr != nil {
					return
				}
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	ln, err := lc.Listen(context.Background(), "tcp", app.config.Addr)
	if err != nil {
		return err
	}
	app.listener = ln
	return nil
}

// serve runs the accept loop and blocks until shutdown.
func (app *application) serve() error {
	//
	// DESIGN
	// ------
	//
	// The accept loop coordinates three concerns without losing in-flight
	// work:
	//
	// 1. ADMISSION CONTROL
	//    A weighted semaphore caps concurrent connections. TryAcquire is a
	//    non-blocking "try": when no slot is free the connection is
	//    rejected immediately with an error reply instead of queueing,
	//    which keeps the accept loop responsive under overload. An
	//    optional token-bucket limiter additionally caps the rate at
	//    which new connections are admitted.
	//
	// 2. GRACEFUL SHUTDOWN
	//    A dedicated goroutine listens for SIGINT/SIGTERM. On a signal it
	//    closes the listener to stop accepting, then waits for in-flight
	//    sessions (tracked by a WaitGroup) bounded by the shutdown
	//    timeout, so a stuck client cannot hang the process forever.
	//
	// 3. ERROR PROPAGATION
	//    The shutdown goroutine reports its result over a channel so the
	//    main loop can exit with the right status.
	//
	if err := app.listen(); err != nil {
		return err
	}

	serverAddr := app.listener.Addr().String()

	if app.readyCh != nil {
		close(app.readyCh)
	}

	shutdownError := make(chan error)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("caught signal", "signal", s.String(), "address", serverAddr)
		app.logger.Info("shutting down server", "address", serverAddr)

		ctx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()

		if err := app.listener.Close(); err != nil {
			shutdownError <- err
		}

		wgDone := make(chan struct{})
		go func() {
			app.wg.Wait()
			close(wgDone)
		}()

		select {
		case <-wgDone:
			shutdownError <- nil
		case <-ctx.Done():
			shutdownError <- ctx.Err()
		}
	}()

	app.logger.Info("server starting", "address", serverAddr)

	for {
		conn, err := app.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break // Normal shutdown path
			}
			app.logger.Error("failed to accept connection", "error", err, "address", serverAddr)
			continue
		}

		if app.acceptLimiter != nil && !app.acceptLimiter.Allow() {
			app.rejectConnection(conn, errRateLimitResponse, "rate limit")
			continue
		}

		if !app.connSem.TryAcquire(1) {
			app.rejectConnection(conn, errMaxConnectionsResponse, "limit reached")
			continue
		}

		app.wg.Add(1)
		go app.handleConnection(conn)
	}

	err := <-shutdownError
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		app.logger.Error("server stopped with error", "error", err, "address", serverAddr)
		return err
	}

	app.logger.Info("server stopped gracefully", "address", serverAddr)
	return nil
}

// rejectConnection writes an error reply and closes the connection without
// admitting it. A strict write deadline keeps a client that never reads
// from blocking the accept loop.
func (app *application) rejectConnection(conn net.Conn, response, reason string) {
	app.logger.Info("rejecting connection", "reason", reason, "remote_addr", conn.RemoteAddr().String())

	_ = conn.SetWriteDeadline(time.Now().Add(rejectionTimeout))
	_, _ = conn.Write([]byte(response))
	_ = conn.Close()
}

// session is the per-connection state the dispatcher operates on.
type session struct {
	conn   net.Conn
	reader *resp.Reader
	writer *resp.Writer
	bw     *bufio.Writer
	client *Client
}

// handleConnection manages the lifecycle of a single client connection.
func (app *application) handleConnection(conn net.Conn) {
	//
	// DESIGN
	// ------
	//
	// The command loop is strictly sequential: read one complete command,
	// run its handler to completion including the reply, then read the
	// next. Replies accumulate in a bufio.Writer and are flushed with the
	// same "smart flush" the buffered read side enables: when the client
	// pipelined commands the read buffer still has data after a command,
	// so the flush is skipped and multiple replies go out in one write.
	//
	// The deferred operations ensure that however the loop exits (clean
	// disconnect, protocol error, QUIT) the connection slot is returned,
	// the client registration is dropped, buffered replies are sent, and
	// the socket is closed.
	//
	defer app.connSem.Release(1)
	defer app.wg.Done()
	defer func() { _ = conn.Close() }()

	app.metrics.TotalConnections.Add(1)
	app.metrics.ActiveConnections.Add(1)
	defer app.metrics.ActiveConnections.Add(-1)

	client := app.registry.RegisterConnection()
	defer func() {
		app.registry.DropConnection(client.ID())
		client.Release()
	}()

	remoteAddr := conn.RemoteAddr().String()
	logger := app.logger.With("remote_addr", remoteAddr, "client_id", client.ID())
	logger.Info("new connection")

	reader := resp.NewReader(conn)
	reader.SetMaxSimpleStringLength(app.config.MaxSimpleStringLength)
	bw := bufio.NewWriterSize(conn, 4096)
	writer := resp.NewWriter(bw)

	// Flush whatever replies are buffered before the connection closes,
	// including replies to commands processed before a mid-pipeline error.
	defer func() { _ = bw.Flush() }()

	sess := &session{
		conn:   conn,
		reader: reader,
		writer: writer,
		bw:     bw,
		client: client,
	}

	for {
		if app.config.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(app.config.IdleTimeout)); err != nil {
				logger.Error("failed to set read deadline", "error", err)
				return
			}
		}

		err := app.dispatchCommand(sess)
		if err != nil {
			app.endSession(sess, logger, err)
			return
		}

		if werr := writer.Err(); werr != nil {
			if !isPeerClosed(werr) {
				logger.Error("failed to write reply", "error", werr)
			}
			return
		}

		// Smart flush: only flush when the read buffer is drained, so
		// pipelined commands batch their replies into one write.
		if reader.Buffered() == 0 {
			if err := bw.Flush(); err != nil {
				if !isPeerClosed(err) {
					logger.Error("failed to flush replies", "error", err)
				}
				return
			}
		}
	}
}

// endSession classifies the terminal error of a session and logs
// accordingly. QUIT and peer closure are clean exits; anything else gets a
// final error reply when one is still owed.
func (app *application) endSession(sess *session, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, errQuit):
		logger.Info("client quit")
	case errors.Is(err, io.EOF) || isPeerClosed(err):
		logger.Info("client disconnected")
	case errors.Is(err, resp.ErrProtocol) || errors.Is(err, resp.ErrRecursionLimit):
		if !sess.writer.Replied() {
			sess.writer.WriteError(userMessage(err))
		}
		logger.Error("protocol error, closing connection", "error", err)
	case errors.Is(err, os.ErrDeadlineExceeded):
		logger.Info("closing idle connection")
	default:
		logger.Error("session error", "error", err)
	}
}

// isPeerClosed reports whether err means the peer reset or abandoned the
// connection, which terminates the session silently.
func isPeerClosed(err error) bool {
	return errors.Is(err, unix.ECONNRESET) ||
		errors.Is(err, unix.EPIPE) ||
		errors.Is(err, unix.ENOTCONN) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
