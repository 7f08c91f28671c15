package peer

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Harshitk-cp/cogsync/internal/wire"
	"go.uber.org/zap"
)

const defaultIdleTimeout = 5 * time.Minute

// Listener accepts sync connections from remote peers and feeds received
// frames into the overlay. One goroutine per connection; frames from a single
// connection are applied in arrival order.
type Listener struct {
	overlay *Overlay
	logger  *zap.Logger

	// IdleTimeout bounds how long a connection may sit without producing a
	// complete frame. A stalled peer is cut, never waited on forever.
	IdleTimeout time.Duration

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

func NewListener(overlay *Overlay, logger *zap.Logger) *Listener {
	return &Listener{
		overlay:     overlay,
		logger:      logger,
		IdleTimeout: defaultIdleTimeout,
	}
}

// Start binds the address and begins accepting connections in the background.
func (l *Listener) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	l.wg.Add(1)
	go l.acceptLoop(ln)

	l.logger.Info("sync listener started", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or empty before Start.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// Stop closes the listener and waits for in-flight connections to finish.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.ln != nil {
		_ = l.ln.Close()
	}
	l.mu.Unlock()
	l.wg.Wait()
	l.logger.Info("sync listener stopped")
}

func (l *Listener) acceptLoop(ln net.Listener) {
	defer l.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.logger.Warn("accept failed", zap.Error(err))
			}
			return
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConn(conn)
		}()
	}
}

// handleConn consumes frames until the peer closes, stalls past the idle
// timeout, or breaks protocol. Protocol errors close the connection; they are
// never reinterpreted as data.
func (l *Listener) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	remote := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	log := l.logger.With(zap.String("remote", remote))
	log.Debug("sync connection opened")

	for {
		if err := conn.SetReadDeadline(time.Now().Add(l.IdleTimeout)); err != nil {
			return
		}
		h, payload, err := wire.ReadFrame(conn)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Debug("sync connection closed by peer")
			case errors.Is(err, os.ErrDeadlineExceeded):
				log.Warn("sync connection idle timeout")
			case errors.Is(err, wire.ErrBadMagic), errors.Is(err, wire.ErrBadVersion),
				errors.Is(err, wire.ErrPayloadTooLarge):
				log.Warn("protocol error, dropping connection", zap.Error(err))
			case errors.Is(err, net.ErrClosed):
			default:
				log.Warn("read failed", zap.Error(err))
			}
			return
		}

		switch h.Type {
		case wire.MsgSyncRequest:
			// Batch announcement; nothing to prepare.

		case wire.MsgSyncAtom:
			atom, err := wire.DecodeAtom(h, payload)
			if err != nil {
				log.Warn("dropping malformed atom frame", zap.Error(err))
				continue
			}
			if unresolved := l.overlay.ApplyRemoteAtom(host, atom); unresolved != nil {
				notify := wire.EncodeAtom(*unresolved, wire.MsgConflictNotify)
				if err := l.writeFrame(conn, notify); err != nil {
					log.Warn("conflict notify failed", zap.Error(err))
					return
				}
			}

		case wire.MsgSyncLink:
			link, err := wire.DecodeLink(h, payload)
			if err != nil {
				log.Warn("dropping malformed link frame", zap.Error(err))
				continue
			}
			l.overlay.ApplyRemoteLink(host, link)

		case wire.MsgSyncComplete:
			if err := l.writeFrame(conn, wire.EncodeControl(wire.MsgSyncAck)); err != nil {
				log.Warn("ack failed", zap.Error(err))
				return
			}
			log.Debug("batch acknowledged")

		default:
			log.Warn("dropping unexpected frame", zap.String("type", h.Type.String()))
		}
	}
}

func (l *Listener) writeFrame(conn net.Conn, frame []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(l.overlay.WriteTimeout)); err != nil {
		return err
	}
	return wire.WriteFrame(conn, frame)
}
