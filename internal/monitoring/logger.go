// Package monitoring holds the package-level diagnostic logger shared by the
// simulator packages.
package monitoring

import (
	"log"

	"go.uber.org/zap"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger or UseZap. Tests can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// UseZap routes Logf through a zap sugared logger at info level.
// A nil logger restores the default log.Printf behaviour.
func UseZap(l *zap.SugaredLogger) {
	if l == nil {
		Logf = log.Printf
		return
	}
	Logf = l.Infof
}

// NewZapLogger builds the CLI logger. Verbose selects zap's development
// config (console encoder, debug level); otherwise the production config.
func NewZapLogger(verbose bool) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
