package cli

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// EnvNoColor disables colored log levels when set to "1".
const EnvNoColor = "SKYTOML_NO_COLOR"

// NewLogger returns a console logger writing entries at or above level to w.
// Level names are those zap accepts: debug, info, warn, error.
func NewLogger(w io.Writer, level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if UseColor(w) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

// UseColor reports whether w is a terminal and color has not been disabled.
// This respects both SKYTOML_NO_COLOR and the NO_COLOR standard
// (https://no-color.org).
func UseColor(w io.Writer) bool {
	if os.Getenv(EnvNoColor) == "1" {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
