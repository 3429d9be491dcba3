package cli

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/cperrin88/grinder/pkg/model"
	"github.com/cperrin88/grinder/pkg/orchestrator"
)

// progress draws one bar per fetch step of a sync.
type progress struct {
	out   io.Writer
	label string

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgress(out io.Writer, label string) *progress {
	return &progress{out: out, label: label}
}

// hooks returns orchestrator callbacks that drive the bar. A nil progress
// yields no callbacks.
func (p *progress) hooks() orchestrator.Hooks {
	if p == nil {
		return orchestrator.Hooks{}
	}
	return orchestrator.Hooks{OnEvent: p.onEvent, OnItem: p.onItem}
}

func (p *progress) onEvent(e orchestrator.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e.Phase {
	case orchestrator.StateFetching:
		if e.Total == 0 {
			return
		}
		p.bar = progressbar.NewOptions(e.Total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(p.label),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	case orchestrator.StatePruning, orchestrator.StateDone, orchestrator.StateFailed:
		if p.bar != nil {
			_ = p.bar.Finish()
			_, _ = io.WriteString(p.out, "\n")
			p.bar = nil
		}
	}
}

func (p *progress) onItem(model.PackageItem, model.FetchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}
