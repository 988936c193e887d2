package moderation

// LoggerProvider hands out named loggers so each component logs under its own
// scope, e.g. "moderation.workflow" or "moderation.user_provider". It matches
// the surface of glog.BaseLogger.GetLogger.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// ResolveLogger picks the logger a component should use. A provider that
// resolves the name wins; an explicit logger is the fallback; nil everything
// gets the package default. The returned provider always resolves to the
// returned logger so callers can pass both along.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if resolved := provider.GetLogger(name); resolved != nil {
			return provider, resolved
		}
	}

	if logger == nil {
		logger = defLogger{}
	}

	return staticLoggerProvider{logger: logger}, logger
}

type staticLoggerProvider struct {
	logger Logger
}

func (p staticLoggerProvider) GetLogger(string) Logger {
	return p.logger
}
