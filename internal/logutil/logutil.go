// Package logutil holds helpers for slog loggers.
package logutil

import "github.com/decred/slog"

// prefixLogger tags every message written to the wrapped logger. Level and
// SetLevel are served by the embedded logger.
type prefixLogger struct {
	slog.Logger
	prefix string
}

func (p *prefixLogger) f(format string) string {
	return p.prefix + " " + format
}

func (p *prefixLogger) v(args []interface{}) []interface{} {
	return append([]interface{}{p.prefix}, args...)
}

func (p *prefixLogger) Tracef(format string, params ...interface{}) {
	p.Logger.Tracef(p.f(format), params...)
}

func (p *prefixLogger) Debugf(format string, params ...interface{}) {
	p.Logger.Debugf(p.f(format), params...)
}

func (p *prefixLogger) Infof(format string, params ...interface{}) {
	p.Logger.Infof(p.f(format), params...)
}

func (p *prefixLogger) Warnf(format string, params ...interface{}) {
	p.Logger.Warnf(p.f(format), params...)
}

func (p *prefixLogger) Errorf(format string, params ...interface{}) {
	p.Logger.Errorf(p.f(format), params...)
}

func (p *prefixLogger) Criticalf(format string, params ...interface{}) {
	p.Logger.Criticalf(p.f(format), params...)
}

func (p *prefixLogger) Trace(v ...interface{})    { p.Logger.Trace(p.v(v)...) }
func (p *prefixLogger) Debug(v ...interface{})    { p.Logger.Debug(p.v(v)...) }
func (p *prefixLogger) Info(v ...interface{})     { p.Logger.Info(p.v(v)...) }
func (p *prefixLogger) Warn(v ...interface{})     { p.Logger.Warn(p.v(v)...) }
func (p *prefixLogger) Error(v ...interface{})    { p.Logger.Error(p.v(v)...) }
func (p *prefixLogger) Critical(v ...interface{}) { p.Logger.Critical(p.v(v)...) }

// PrefixLogger returns a logger that prepends prefix to every message. The
// loopback engine uses it to tag log lines with the session number.
func PrefixLogger(log slog.Logger, prefix string) slog.Logger {
	return &prefixLogger{Logger: log, prefix: prefix}
}
