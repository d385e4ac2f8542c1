package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const localNotificationsFile = "notifications.log"

// LocalNotifier is the fallback delivery channel used when no host
// runtime is reachable. It mirrors the platform notification facility:
// delivery only happens once permission has been granted, and a denied
// channel is not an error for the caller.
type LocalNotifier struct {
	mu      sync.Mutex
	path    string
	granted bool
	logger  *zap.Logger
}

// NewLocalNotifier creates a local notifier writing to dir. granted
// reflects whether the user previously allowed local notifications.
func NewLocalNotifier(dir string, granted bool, logger *zap.Logger) *LocalNotifier {
	return &LocalNotifier{
		path:    filepath.Join(dir, localNotificationsFile),
		granted: granted,
		logger:  logger.Named("local-notify"),
	}
}

// Granted reports whether local notifications may be shown.
func (n *LocalNotifier) Granted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.granted
}

// RequestPermission grants local notification permission and reports the
// resulting state.
func (n *LocalNotifier) RequestPermission() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.granted = true
	return n.granted
}

// Notify appends the notification to the local notifications file.
func (n *LocalNotifier) Notify(p Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.granted {
		return fmt.Errorf("local notifications not granted")
	}

	if err := os.MkdirAll(filepath.Dir(n.path), 0o755); err != nil {
		return fmt.Errorf("create notifications directory: %w", err)
	}
	f, err := os.OpenFile(n.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open notifications file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s  %s: %s", time.Now().Format(time.RFC3339), p.Title, p.Body)
	if p.TargetURL != "" {
		line += "  (" + p.TargetURL + ")"
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}

	n.logger.Debug("Local notification written", zap.String("title", p.Title))
	return nil
}
