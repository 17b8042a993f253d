package witxbindgen

import "go.uber.org/zap"

// Config configures a Generator. It plays the role the teacher's
// RuntimeConfig/ModuleConfig pair plays for wazero: a small plain struct
// constructed once up front, rather than a chain of With* options.
type Config struct {
	// ScriptName is the embedded script's filename, used both as the
	// engine's module name and (via its stem) the default output
	// filename.
	ScriptName string
	// ScriptSource is the embedded script's full source text.
	ScriptSource string
	// ImportSpidermonkey selects the engine linker's import mode (a
	// single imported "spidermonkey" instance). It must be true: embed
	// mode is declared by spec.md but left unimplemented (see
	// enginelink.EmbedSpidermonkey), so New rejects false here with a
	// KindUnsupported error rather than silently falling back.
	ImportSpidermonkey bool
	// Logger receives structured Info/Warn/Debug records at phase
	// boundaries. Defaults to zap.NewNop() if nil.
	Logger *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
