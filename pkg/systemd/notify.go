// Package systemd reports service state to the systemd manager.
//
// Every call is a no-op when the process was not started by systemd
// (NOTIFY_SOCKET unset).
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages.
type Notifier interface {
	Ready() error
	Watchdog() error
	Stopping() error
	Status(msg string) error
}

// Daemon is the real notifier.
type Daemon struct{}

func (Daemon) Ready() error    { return notify(daemon.SdNotifyReady) }
func (Daemon) Watchdog() error { return notify(daemon.SdNotifyWatchdog) }
func (Daemon) Stopping() error { return notify(daemon.SdNotifyStopping) }

func (Daemon) Status(msg string) error { return notify("STATUS=" + msg) }

func notify(state string) error {
	_, err := daemon.SdNotify(false, state)
	return err
}

// WatchdogInterval returns the configured WatchdogSec, or zero when the
// watchdog is disabled.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}

// Nop discards every message.
type Nop struct{}

func (Nop) Ready() error          { return nil }
func (Nop) Watchdog() error       { return nil }
func (Nop) Stopping() error       { return nil }
func (Nop) Status(_ string) error { return nil }
