package config

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/tailscale/hujson"
)

// ReloadableFields is the subset of Config a live reload is allowed to
// change (SPEC_FULL.md §9 Open Question 4): log level/format and the
// admin endpoint's on/off switch. Shard/worker/resolver counts require a
// restart.
type ReloadableFields struct {
	LogLevel     string
	LogJSON      bool
	AdminEnabled bool
}

// Watcher watches ConfigPath for writes and invokes onChange with the
// newly parsed reloadable fields, debounced to reloadInterval.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	log      zerolog.Logger
	onChange func(ReloadableFields)
	stop     chan struct{}
	mu       sync.Mutex
}

func NewWatcher(path string, log zerolog.Logger, onChange func(ReloadableFields)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{path: path, watcher: fw, log: log, onChange: onChange, stop: make(chan struct{})}, nil
}

func (w *Watcher) Close() error {
	close(w.stop)
	return w.watcher.Close()
}

// Run processes fsnotify events until Close, debouncing bursts of writes
// (editors often emit several events per save) into one reload.
func (w *Watcher) Run() {
	var pending *time.Timer
	reload := func() {
		raw, err := os.ReadFile(w.path)
		if err != nil {
			w.log.Warn().Err(err).Msg("config: reload read failed")
			return
		}
		std, err := hujson.Standardize(raw)
		if err != nil {
			w.log.Warn().Err(err).Msg("config: reload parse failed")
			return
		}
		var fields ReloadableFields
		if err := json.Unmarshal(std, &reloadAlias{
			LogLevel:     &fields.LogLevel,
			LogJSON:      &fields.LogJSON,
			AdminEnabled: &fields.AdminEnabled,
		}); err != nil {
			w.log.Warn().Err(err).Msg("config: reload decode failed")
			return
		}
		w.onChange(fields)
	}
	for {
		select {
		case <-w.stop:
			if pending != nil {
				pending.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadInterval, reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config: watcher error")
		}
	}
}

// reloadAlias lets json.Unmarshal populate ReloadableFields' pointer
// targets using the same tags as Config, without decoding every field.
type reloadAlias struct {
	LogLevel     *string `json:"log_level"`
	LogJSON      *bool   `json:"log_json"`
	AdminEnabled *bool   `json:"admin_enabled"`
}
