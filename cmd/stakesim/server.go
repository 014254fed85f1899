// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/npos/metrics"
)

// httpServer is a started server bound to a listener.
type httpServer struct {
	srv      *http.Server
	listener net.Listener
}

func listen(addr string, handler http.Handler) (*httpServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen [%v]", addr)
	}
	return &httpServer{
		srv:      &http.Server{Handler: handler, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second},
		listener: listener,
	}, nil
}

// URL returns the base url of the server.
func (s *httpServer) URL() string {
	return "http://" + s.listener.Addr().String()
}

// Serve serves until ctx is done, then shuts the server down.
func (s *httpServer) Serve(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- s.srv.Serve(s.listener)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-done; err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// startAPIServer wraps handler with the request timeout.
func startAPIServer(addr string, handler http.Handler, timeout time.Duration) (*httpServer, error) {
	if timeout > 0 {
		handler = http.TimeoutHandler(handler, timeout, `{"error":"request timeout"}`)
	}
	return listen(addr, handler)
}

func startMetricsServer(addr string) (*httpServer, error) {
	router := mux.NewRouter()
	router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
	return listen(addr, handlers.CompressHandler(router))
}
