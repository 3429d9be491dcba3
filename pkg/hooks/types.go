package hooks

import "github.com/cperrin88/grinder/pkg/model"

// HookType represents the point in a sync at which a hook runs.
type HookType string

// Supported hook types.
const (
	PreSync  HookType = "pre-sync"
	PostSync HookType = "post-sync"
)

// HookContext contains information passed to hooks.
type HookContext struct {
	Channel  string
	SavePath string
	// Kind is "packages" or "kickstarts".
	Kind    string
	Report  model.SyncReport
	Stopped bool
	Vars    map[string]interface{}
}

// variables flattens the context into script globals.
func (c HookContext) variables() map[string]interface{} {
	failed := make([]interface{}, 0, len(c.Report.Failed))
	for _, f := range c.Report.Failed {
		failed = append(failed, f.Item.String())
	}
	vars := map[string]interface{}{
		"channel":   c.Channel,
		"savePath":  c.SavePath,
		"kind":      c.Kind,
		"successes": c.Report.Successes,
		"downloads": c.Report.Downloads,
		"errors":    c.Report.Errors,
		"failed":    failed,
		"stopped":   c.Stopped,
	}
	for k, v := range c.Vars {
		vars[k] = v
	}
	return vars
}
