//go:build debug

package logs

import "log/slog"

var defaultLevel = slog.LevelDebug
