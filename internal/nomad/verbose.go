package nomad

import (
	"net/http"
	"net/http/httputil"
	"regexp"
	"time"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
)

// verboseTransport logs full request and response dumps at debug level.
type verboseTransport struct {
	next   http.RoundTripper
	logger logger.Logger
}

func (t *verboseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.logger.Enabled(logger.DebugLevel) {
		return t.next.RoundTrip(req)
	}

	if dump, err := httputil.DumpRequestOut(req, true); err == nil {
		t.logger.Debug("nomad request",
			logger.String("method", req.Method),
			logger.String("url", redactedURL(req)),
			logger.String("dump", redactAuthorization(string(dump))))
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Debug("nomad request failed",
			logger.String("url", redactedURL(req)),
			logger.Duration("duration", time.Since(start)),
			logger.Error(err))
		return nil, err
	}

	if dump, err := httputil.DumpResponse(resp, true); err == nil {
		t.logger.Debug("nomad response",
			logger.String("url", redactedURL(req)),
			logger.Int("status", resp.StatusCode),
			logger.Duration("duration", time.Since(start)),
			logger.String("dump", string(dump)))
	}
	return resp, nil
}

var authorizationHeader = regexp.MustCompile(`(?im)^(Authorization:\s*Bearer\s+)\S+`)

func redactAuthorization(dump string) string {
	return authorizationHeader.ReplaceAllString(dump, "${1}***REDACTED***")
}

func redactedURL(req *http.Request) string {
	return req.URL.Redacted()
}
