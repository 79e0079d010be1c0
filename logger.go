package rollcache

// Fields is a minimal structured field map for log events.
type Fields map[string]any

// Logger is the leveled logger the cache components report through:
// reduction outcomes from writers, corrupt or undecodable members from
// readers, message drops from collections and cycle activity from
// refreshers. Adapters for zap, logrus and slog live under log/. A nil
// Logger in any Options struct disables logging.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards every event.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
