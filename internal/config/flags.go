package config

import (
	"github.com/spf13/pflag"
)

// Flags флаги командной строки; применяются только явно заданные
type Flags struct {
	fs *pflag.FlagSet

	ConfigPath string
	serverURL  string
	canvasID   string
	dbPath     string
	logLevel   string
	listenAddr string
	debug      bool
}

// ClientFlags регистрирует флаги клиента
func ClientFlags(fs *pflag.FlagSet) *Flags {
	d := Default()
	f := &Flags{fs: fs}
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "path to YAML config file")
	fs.StringVarP(&f.serverURL, "server", "s", d.Client.ServerURL, "server URL")
	fs.StringVar(&f.canvasID, "canvas", d.Client.CanvasID, "canvas ID")
	fs.StringVar(&f.dbPath, "db", d.Client.DBPath, "path to local database")
	fs.StringVar(&f.logLevel, "log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.BoolVar(&f.debug, "debug", false, "shortcut for --log-level=debug")
	return f
}

// ServerFlags регистрирует флаги сервера
func ServerFlags(fs *pflag.FlagSet) *Flags {
	d := Default()
	f := &Flags{fs: fs}
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "path to YAML config file")
	fs.StringVarP(&f.listenAddr, "addr", "a", d.Server.ListenAddr, "listen address")
	fs.StringVar(&f.dbPath, "db", d.Server.DBPath, "path to server database")
	fs.StringVar(&f.logLevel, "log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.BoolVar(&f.debug, "debug", false, "shortcut for --log-level=debug")
	return f
}

// Apply переносит явно заданные флаги в конфигурацию
func (f *Flags) Apply(cfg *Config) {
	changed := func(name string) bool {
		fl := f.fs.Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("server") {
		cfg.Client.ServerURL = f.serverURL
	}
	if changed("canvas") {
		cfg.Client.CanvasID = f.canvasID
	}
	if changed("addr") {
		cfg.Server.ListenAddr = f.listenAddr
	}
	if changed("db") {
		if f.fs.Lookup("addr") != nil {
			cfg.Server.DBPath = f.dbPath
		} else {
			cfg.Client.DBPath = f.dbPath
		}
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if f.debug {
		cfg.LogLevel = "debug"
	}
}
