// Package config holds the configuration file format for the mthread command.
package config

// Config is the parsed form of the mthread.conf configuration file.
type Config struct {
	DataDir          string            `sconf:"optional" sconf-doc:"NOTE: This config file is in 'sconf' format. Indent with tabs. Comments must be on their own line, they don't end a line. Do not escape or quote strings. Details: https://pkg.go.dev/github.com/mjl-/sconf.\n\n\nDirectory where the message database is stored. If this is a relative path, it is relative to the working directory. Default: data."`
	LogLevel         string            `sconf:"optional" sconf-doc:"Default log level, one of: error, info, debug. Default: error."`
	PackageLogLevels map[string]string `sconf:"optional" sconf-doc:"Overrides of log level per package (e.g. thread, threaddb, webthread)."`
	Address          string            `sconf:"optional" sconf-doc:"Address to serve the HTTP API and Prometheus metrics on, e.g. localhost:8015. Default: localhost:8015."`
	Compact          bool              `sconf:"optional" sconf-doc:"Prune empty containers from built threads by default."`
}

// Defaults fills in default values for unset fields.
func (c *Config) Defaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogLevel == "" {
		c.LogLevel = "error"
	}
	if c.Address == "" {
		c.Address = "localhost:8015"
	}
}
