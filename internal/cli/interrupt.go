package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/cperrin88/grinder/internal/logger"
)

// interruptHandler turns the first interrupt into a graceful stop and the
// second into an immediate exit.
type interruptHandler struct {
	stop func()
	exit func(code int)

	mu    sync.Mutex
	count int
}

func newInterruptHandler(stop func(), exit func(code int)) *interruptHandler {
	return &interruptHandler{stop: stop, exit: exit}
}

// Stopped reports whether an interrupt was received.
func (h *interruptHandler) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count > 0
}

func (h *interruptHandler) handle() {
	h.mu.Lock()
	h.count++
	n := h.count
	h.mu.Unlock()

	if n == 1 {
		logger.Warn("Interrupt received, finishing running downloads. Interrupt again to quit immediately")
		h.stop()
		return
	}
	logger.Error("Second interrupt received, exiting")
	h.exit(exitInterrupted)
}

// watch handles signals until ctx is done.
func (h *interruptHandler) watch(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			h.handle()
		}
	}
}

// catchInterrupts routes SIGINT to a new handler calling stop until the
// returned release func runs.
func catchInterrupts(ctx context.Context, stop func()) (*interruptHandler, func()) {
	watchCtx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt)
	h := newInterruptHandler(stop, os.Exit)
	go h.watch(watchCtx, signals)
	return h, func() {
		signal.Stop(signals)
		cancel()
	}
}
