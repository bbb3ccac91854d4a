package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/syncmld/internal/logger"
)

// Watch watches configPath for changes and invokes onChange with the
// reloaded, defaulted, and validated Config. A reload that fails validation
// is logged and ignored; the previous Config stays in effect.
//
// Grounded on this codebase's viper/fsnotify config-reload wiring (the
// reference implementation binds viper.WatchConfig directly; syncmld's
// Config is built with a fresh viper.Viper per Load, so it watches the
// file itself instead).
func Watch(configPath string, onChange func(*Config)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(configPath); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(configPath)
				if err != nil {
					logger.Warn("config: reload failed, keeping previous configuration", "path", configPath, "error", err.Error())
					continue
				}
				onChange(cfg)
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config: watcher error", "error", werr.Error())
			}
		}
	}()

	return watcher.Close, nil
}
