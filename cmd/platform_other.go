//go:build !windows

package cmd

import (
	"github.com/Lattixe/MonkMode-windows/internal/blocker"
	"github.com/Lattixe/MonkMode-windows/internal/config"
	"github.com/Lattixe/MonkMode-windows/internal/enumerator"
	"github.com/Lattixe/MonkMode-windows/internal/focus"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
)

func ensureElevated(logger.LoggerInterface) error {
	return ErrUnsupportedPlatform
}

func isElevated() bool {
	return false
}

func newRunner(logger.LoggerInterface, *config.Config, focus.Confirmer) (*focus.Runner, error) {
	return nil, ErrUnsupportedPlatform
}

func newEnumerator(logger.LoggerInterface) (*enumerator.Enumerator, error) {
	return nil, ErrUnsupportedPlatform
}

func newRecoveryBlocker(logger.LoggerInterface, *config.Config) (*blocker.Blocker, error) {
	return nil, ErrUnsupportedPlatform
}

func installConsoleHandler(func(ctrlType uint32) bool) error {
	return nil
}
