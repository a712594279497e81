package insteon

import "github.com/golang/glog"

// Logger is the narrow interface the core logs through. The default
// implementation wraps github.com/golang/glog the same way the
// teacher's plm and network packages call insteon.Log.Tracef/
// Debugf/Infof directly; tests substitute a no-op logger so test
// output isn't cluttered with glog's flag-controlled verbosity.
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type glogLogger struct{}

func (glogLogger) Tracef(format string, args ...interface{})    { glog.V(2).Infof(format, args...) }
func (glogLogger) Debugf(format string, args ...interface{})    { glog.V(1).Infof(format, args...) }
func (glogLogger) Infof(format string, args ...interface{})     { glog.Infof(format, args...) }
func (glogLogger) Warningf(format string, args ...interface{})  { glog.Warningf(format, args...) }
func (glogLogger) Errorf(format string, args ...interface{})    { glog.Errorf(format, args...) }

// Log is the package-level logging sink used throughout the core.
// It is a variable, not a constant, so a host process (or a test)
// can inject a different sink before starting the engine.
var Log Logger = glogLogger{}

// NoopLogger discards everything; useful in unit tests that don't
// want glog's global flags involved.
type NoopLogger struct{}

func (NoopLogger) Tracef(string, ...interface{})   {}
func (NoopLogger) Debugf(string, ...interface{})   {}
func (NoopLogger) Infof(string, ...interface{})    {}
func (NoopLogger) Warningf(string, ...interface{}) {}
func (NoopLogger) Errorf(string, ...interface{})   {}
