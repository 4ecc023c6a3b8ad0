package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"gitea.jw6.us/james/caldavgw/internal/dav"
	"gitea.jw6.us/james/caldavgw/internal/http/ratelimit"
	"gitea.jw6.us/james/caldavgw/internal/metrics"
	"gitea.jw6.us/james/caldavgw/internal/netconn"
)

type connHandler interface {
	ServeConn(ctx context.Context, lc dav.LineConn)
}

// connServer runs one handler goroutine per accepted CalDAV connection.
type connServer struct {
	handler connHandler
	limiter *ratelimit.Limiter
	timeout time.Duration

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func newConnServer(handler connHandler, limiter *ratelimit.Limiter, timeout time.Duration) *connServer {
	return &connServer{
		handler: handler,
		limiter: limiter,
		timeout: timeout,
		conns:   make(map[net.Conn]struct{}),
	}
}

// serve accepts until ctx is cancelled or the listener fails. Peers over
// their accept budget are disconnected without a response.
func (s *connServer) serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Printf("[WARN] accept: %v", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		if s.limiter != nil && !s.limiter.AllowAddr(raw.RemoteAddr()) {
			metrics.ConnectionRejected()
			log.Printf("[WARN] conn=%s: connection rate exceeded, closing", raw.RemoteAddr())
			_ = raw.Close()
			continue
		}

		s.track(raw, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(raw, false)
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[ERROR] conn=%s: handler panic: %v\n%s", raw.RemoteAddr(), r, debug.Stack())
					_ = raw.Close()
				}
			}()
			s.handler.ServeConn(ctx, netconn.New(raw, s.timeout))
		}()
	}
}

func (s *connServer) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// shutdown closes every open connection and waits for the handlers to return.
func (s *connServer) shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
