//go:build windows

package windows

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"

	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
)

const (
	notificationSettingsKey = `Software\Microsoft\Windows\CurrentVersion\Notifications\Settings`
	toastsEnabledValue      = "NOC_GLOBAL_SETTING_TOASTS_ENABLED"
)

// NotificationSettings approximates Focus Assist with the global toast switch.
// Any level other than Off disables toasts; a disabled switch reads back as
// AlarmsOnly, the closest level.
type NotificationSettings struct {
	root registry.Key
	path string
}

// NewNotificationSettings controls the current user's toast setting
func NewNotificationSettings() *NotificationSettings {
	return &NotificationSettings{root: registry.CURRENT_USER, path: notificationSettingsKey}
}

func (n *NotificationSettings) Level() (interfaces.NotificationLevel, error) {
	k, err := registry.OpenKey(n.root, n.path, registry.QUERY_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return interfaces.NotificationsOff, nil
	}
	if err != nil {
		return interfaces.NotificationsOff, fmt.Errorf("open notification settings: %w", err)
	}
	defer k.Close()

	v, _, err := k.GetIntegerValue(toastsEnabledValue)
	if errors.Is(err, registry.ErrNotExist) {
		// Absent means toasts are on
		return interfaces.NotificationsOff, nil
	}
	if err != nil {
		return interfaces.NotificationsOff, fmt.Errorf("read %s: %w", toastsEnabledValue, err)
	}

	if v == 0 {
		return interfaces.NotificationsAlarmsOnly, nil
	}

	return interfaces.NotificationsOff, nil
}

func (n *NotificationSettings) SetLevel(level interfaces.NotificationLevel) error {
	k, _, err := registry.CreateKey(n.root, n.path, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open notification settings: %w", err)
	}
	defer k.Close()

	enabled := uint32(1)
	if level != interfaces.NotificationsOff {
		enabled = 0
	}

	if err := k.SetDWordValue(toastsEnabledValue, enabled); err != nil {
		return fmt.Errorf("write %s: %w", toastsEnabledValue, err)
	}

	return nil
}
