package inbound

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/stlalpha/qmail/internal/logging"
	"github.com/stlalpha/qmail/internal/packet"
)

// Start runs an initial pass, then keeps indexing until ctx is cancelled:
// on the configured cron schedule and, when watching is enabled, whenever a
// packet lands in the inbound directory. It returns once both are stopped.
func (p *Processor) Start(ctx context.Context) error {
	dir := p.cfg.Paths.Inbound
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create inbound dir %s: %w", dir, err)
	}
	p.logResult(p.RunOnce(ctx))

	var c *cron.Cron
	if spec := p.cfg.Inbound.Schedule; spec != "" {
		c = cron.New(cron.WithSeconds())
		_, err := c.AddFunc(spec, func() {
			res, ran := p.tryRunOnce(ctx)
			if !ran {
				p.log.Printf("WARN: scheduled run skipped: previous run still in progress")
				return
			}
			p.logResult(res)
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q: %w", spec, err)
		}
		c.Start()
		p.log.Printf("INFO: inbound scheduler running: %s", spec)
	}

	var w *watcher
	if p.cfg.Inbound.Watch {
		var err error
		w, err = p.watch(ctx, dir, p.cfg.Debounce())
		if err != nil {
			if c != nil {
				<-c.Stop().Done()
			}
			return err
		}
	}

	if c == nil && w == nil {
		p.log.Printf("INFO: inbound schedule and watcher disabled, nothing left to do")
		return nil
	}

	<-ctx.Done()
	p.log.Printf("INFO: inbound processor stopping...")
	if w != nil {
		w.stop()
	}
	if c != nil {
		<-c.Stop().Done()
	}
	return nil
}

func (p *Processor) logResult(res Result) {
	if res.Packets > 0 || res.Duplicates > 0 {
		p.log.Printf("INFO: inbound pass: packets=%d, messages=%d, skipped=%d, duplicates=%d",
			res.Packets, res.Messages, res.Skipped, res.Duplicates)
	}
	for _, e := range res.Errors {
		p.log.Printf("ERROR: inbound pass: %s", e)
	}
}

// watcher debounces fsnotify events per file, so a packet is only processed
// once the uploader has stopped writing it.
type watcher struct {
	fs     *fsnotify.Watcher
	log    logging.Logger
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func (p *Processor) watch(ctx context.Context, dir string, debounce time.Duration) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	p.log.Printf("INFO: watching %s for new packets", dir)

	w := &watcher{
		fs:     fw,
		log:    p.log,
		done:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
	}
	w.wg.Add(1)
	go w.loop(debounce, func(path string) { p.handleEvent(ctx, path) })
	return w, nil
}

func (w *watcher) loop(debounce time.Duration, fire func(path string)) {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := event.Name
			w.mu.Lock()
			if t, ok := w.timers[name]; ok {
				t.Stop()
			}
			w.timers[name] = time.AfterFunc(debounce, func() {
				w.mu.Lock()
				delete(w.timers, name)
				select {
				case <-w.done:
					w.mu.Unlock()
					return
				default:
				}
				w.wg.Add(1)
				w.mu.Unlock()
				defer w.wg.Done()
				fire(name)
			})
			w.mu.Unlock()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Dropped events are picked up by the next scheduled pass.
				w.log.Printf("WARN: inbound watcher: %v", err)
				continue
			}
			w.log.Printf("ERROR: inbound watcher: %v", err)

		case <-w.done:
			return
		}
	}
}

// stop waits for the event loop and any packet being processed.
func (w *watcher) stop() {
	w.mu.Lock()
	close(w.done)
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
	w.mu.Unlock()
	w.fs.Close()
	w.wg.Wait()
}

func (p *Processor) handleEvent(ctx context.Context, path string) {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return
	}
	ok, err := packet.IsPacket(path, p.cfg.Archivers)
	if err != nil || !ok {
		return
	}
	run, err := p.ProcessPacket(ctx, path)
	switch {
	case errors.Is(err, ErrDuplicate):
		p.log.Printf("INFO: %s already indexed by run %s", filepath.Base(path), run.ID)
	case err != nil:
		p.log.Printf("ERROR: %s: %v", filepath.Base(path), err)
	default:
		p.log.Printf("INFO: indexed %s: %d messages, %d skipped", filepath.Base(path), run.Written, run.Skipped)
	}
}

