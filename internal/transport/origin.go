package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/upperlevel/carcassonne-server/internal/logging"
)

// validateOrigin checks the request's Origin header against an allowlist,
// matching only scheme and host (ignoring path). A missing Origin header is
// allowed through: not every websocket client is a browser.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		logging.Warn(context.Background(), "transport: invalid origin header", zap.String("origin", origin), zap.Error(err))
		return fmt.Errorf("invalid origin url: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}

	logging.Warn(context.Background(), "transport: origin not allowed", zap.String("origin", origin), zap.Strings("allowed", allowedOrigins))
	return fmt.Errorf("origin not allowed: %s", origin)
}
