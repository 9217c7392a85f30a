package config

import (
	"reflect"
	"sort"
	"strings"

	logx "menunotice/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) structured attrs for logging the new values.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.menu_enabled", newCfg.Logging.Menu.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Queue, newCfg.Queue) {
		changed = append(changed, "queue")
		attrs = append(attrs,
			logx.String("queue.caller", strings.TrimSpace(newCfg.Queue.Caller)),
			logx.Int("queue.size", newCfg.Queue.Size),
			logx.String("queue.color", strings.TrimSpace(newCfg.Queue.Color)),
			logx.String("queue.extra_visible", strings.TrimSpace(newCfg.Queue.ExtraVisible)),
			logx.Int("queue.history_size", newCfg.Queue.HistorySize),
		)
	}

	if !reflect.DeepEqual(oldCfg.Lifecycle, newCfg.Lifecycle) {
		changed = append(changed, "lifecycle")
		attrs = append(attrs,
			logx.String("lifecycle.boundary_scene", strings.TrimSpace(newCfg.Lifecycle.BoundaryScene)),
			logx.String("lifecycle.settle_delay", strings.TrimSpace(newCfg.Lifecycle.SettleDelay)),
			logx.String("lifecycle.dismiss_delay", strings.TrimSpace(newCfg.Lifecycle.DismissDelay)),
		)
	}

	// Storage (persistence). Nil means disabled.
	oldS := oldCfg.Storage
	newS := newCfg.Storage
	var oDriver, nDriver, oBusy, nBusy, oPath, nPath string
	if oldS != nil {
		oDriver = strings.TrimSpace(oldS.Driver)
		oBusy = strings.TrimSpace(oldS.BusyTimeout)
		oPath = strings.TrimSpace(oldS.Path)
	}
	if newS != nil {
		nDriver = strings.TrimSpace(newS.Driver)
		nBusy = strings.TrimSpace(newS.BusyTimeout)
		nPath = strings.TrimSpace(newS.Path)
	}
	var oRetain, nRetain int
	if oldS != nil {
		oRetain = oldS.Retain
	}
	if newS != nil {
		nRetain = newS.Retain
	}
	if oDriver != nDriver || oBusy != nBusy || oPath != nPath || oRetain != nRetain {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPath != ""),
			logx.String("storage.busy_timeout", nBusy),
			logx.Int("storage.retain", nRetain),
		)
	}

	if !reflect.DeepEqual(oldCfg.Sim, newCfg.Sim) {
		changed = append(changed, "sim")
		attrs = append(attrs, logx.Int("sim.script_steps", len(newCfg.Sim.Script)))
	}

	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.String("debug.addr", strings.TrimSpace(newCfg.Debug.Addr)),
			logx.Bool("debug.token_set", newCfg.Debug.Token != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired reports the changed sections that only take effect on restart.
// Storage, the simulated host and the debug server are set up once at startup.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if s == "storage" || s == "sim" || s == "debug" {
			out = append(out, s)
		}
	}
	return out
}
