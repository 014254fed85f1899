// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/vechain/npos/log"
)

// maxLoggedBody caps the request body echoed into the log.
const maxLoggedBody = 1024

// RequestLoggerHandler logs each request with its status and latency.
// Request bodies are logged truncated, the wrapped handler still receives the full body.
func RequestLoggerHandler(handler http.Handler, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil && r.Body != http.NoBody {
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Warn("failed to read request body", "uri", r.URL.String(), "err", err)
				http.Error(w, "bad request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))
			body = raw
			if len(body) > maxLoggedBody {
				body = append(body[:maxLoggedBody:maxLoggedBody], "..."...)
			}
		}

		started := time.Now()
		rec := newMetricsResponseWriter(w)
		handler.ServeHTTP(rec, r)

		ctx := []any{
			"method", r.Method,
			"uri", r.URL.String(),
			"status", rec.statusCode,
			"elapsed", time.Since(started),
		}
		if len(body) > 0 {
			ctx = append(ctx, "body", string(body))
		}
		if rec.statusCode >= http.StatusInternalServerError {
			logger.Warn("API request failed", ctx...)
			return
		}
		logger.Info("API request", ctx...)
	})
}
