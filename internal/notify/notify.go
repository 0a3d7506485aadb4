// Package notify provides cross-platform desktop notifications for mongohaul.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/mongohaul/mongohaul/internal/config"
	"github.com/mongohaul/mongohaul/internal/logging"
)

// Notifier handles desktop notifications. Delivery failures are logged and
// never fail the operation that triggered them.
type Notifier struct {
	logger       *logging.Logger
	mu           sync.RWMutex
	enabled      bool
	showComplete bool
	showFailed   bool
}

// NewNotifier creates a notifier from the notifications config section.
func NewNotifier(cfg config.NotificationConfig, logger *logging.Logger) *Notifier {
	return &Notifier{
		logger:       logger,
		enabled:      cfg.Enabled,
		showComplete: cfg.ShowTransferComplete,
		showFailed:   cfg.ShowTransferFailed,
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// TransferComplete announces a finished import or export. summary is the
// one-line result description; archivePath names the archive involved.
func (n *Notifier) TransferComplete(summary, archivePath string) {
	n.mu.RLock()
	show := n.enabled && n.showComplete
	n.mu.RUnlock()
	if !show {
		return
	}

	title := "Transfer Complete"
	message := summary
	if archivePath != "" {
		message = fmt.Sprintf("%s\n%s", summary, shortenPath(archivePath))
	}
	if err := n.send(title, message); err != nil {
		n.logger.Warn().Err(err).Msg("failed to send transfer complete notification")
	}
}

// TransferFailed announces a mid-run failure awaiting an operator decision.
func (n *Notifier) TransferFailed(errorMsg string) {
	n.mu.RLock()
	show := n.enabled && n.showFailed
	n.mu.RUnlock()
	if !show {
		return
	}

	if err := n.send("Transfer Failed", truncate(errorMsg, 100)); err != nil {
		n.logger.Warn().Err(err).Msg("failed to send transfer failed notification")
	}
}

// send is the internal method that actually sends the notification.
func (n *Notifier) send(title, message string) error {
	// beeep.Notify is cross-platform:
	// - Windows: Uses toast notifications
	// - macOS: Uses NSUserNotificationCenter
	// - Linux: Uses D-Bus notifications
	return beeep.Notify(title, message, "")
}

// Alert sends a prominent notification for critical issues.
func (n *Notifier) Alert(message string) {
	if !n.IsEnabled() {
		return
	}

	title := "mongohaul Alert"
	if err := beeep.Alert(title, message, ""); err != nil {
		// Fall back to regular notify
		if err := n.send(title, message); err != nil {
			n.logger.Error().Err(err).Str("message", message).Msg("failed to send alert notification")
		}
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// shortenPath abbreviates a long path for display in notifications.
func shortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))
	short := filepath.Join("...", parentDir, file)

	vol := filepath.VolumeName(path)
	if vol != "" && len(vol)+len(short)+1 <= maxLen {
		short = vol + string(filepath.Separator) + short
	}

	if len(short) > maxLen {
		return "..." + path[len(path)-(maxLen-3):]
	}
	return short
}
