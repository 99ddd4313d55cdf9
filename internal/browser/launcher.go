package browser

import (
	"fmt"

	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"
)

// resolveBrowser picks the browser executable: the configured path, else an
// installed Chrome/Chromium, else a downloaded Chromium when allowed. An empty
// result leaves the lookup to chromedp.
func resolveBrowser(chromePath string, autoDownload bool, logger *zap.Logger) (string, error) {
	if chromePath != "" {
		return chromePath, nil
	}
	if path, ok := launcher.LookPath(); ok {
		logger.Debug("using installed browser", zap.String("path", path))
		return path, nil
	}
	if !autoDownload {
		return "", nil
	}

	// Cached in ~/.cache/rod/browser after the first download.
	logger.Info("no browser found, downloading Chromium")
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("browser: downloading chromium: %w", err)
	}
	logger.Info("downloaded browser", zap.String("path", path))
	return path, nil
}
