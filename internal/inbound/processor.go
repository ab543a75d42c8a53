// Package inbound indexes mail packets dropped into an inbound directory,
// either on a cron schedule or as soon as the file system reports them.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stlalpha/qmail/internal/catalog"
	"github.com/stlalpha/qmail/internal/config"
	"github.com/stlalpha/qmail/internal/control"
	"github.com/stlalpha/qmail/internal/index"
	"github.com/stlalpha/qmail/internal/logging"
	"github.com/stlalpha/qmail/internal/packet"
	"github.com/stlalpha/qmail/internal/qwk"
)

// ControlFile is the name Extract leaves the control file under.
const ControlFile = "control.dat"

// ErrDuplicate is returned by ProcessPacket for a packet the catalog has
// already indexed successfully.
var ErrDuplicate = errors.New("inbound: packet already indexed")

// Result summarizes one pass over the inbound directory.
type Result struct {
	Packets    int // Packets indexed
	Messages   int // Index records written across all packets
	Skipped    int // Records skipped across all packets
	Duplicates int
	Errors     []string
}

// Processor indexes packets from the inbound directory. Runs are serialized:
// a schedule tick that fires while a run is in progress is dropped.
type Processor struct {
	cfg     config.Config
	codec   *qwk.Codec
	catalog *catalog.Catalog
	log     logging.Logger

	mu sync.Mutex
}

// New returns a Processor that records its runs in cat.
func New(cfg config.Config, cat *catalog.Catalog, l logging.Logger) (*Processor, error) {
	codec, err := cfg.NewCodec()
	if err != nil {
		return nil, fmt.Errorf("inbound: %w", err)
	}
	if cat == nil {
		return nil, errors.New("inbound: catalog is required")
	}
	return &Processor{
		cfg:     cfg,
		codec:   codec,
		catalog: cat,
		log:     logging.OrStd(l),
	}, nil
}

// RunOnce indexes every packet currently in the inbound directory.
func (p *Processor) RunOnce(ctx context.Context) Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runOnce(ctx)
}

// tryRunOnce is RunOnce for the scheduler: it gives up when another run
// holds the lock.
func (p *Processor) tryRunOnce(ctx context.Context) (Result, bool) {
	if !p.mu.TryLock() {
		return Result{}, false
	}
	defer p.mu.Unlock()
	return p.runOnce(ctx), true
}

func (p *Processor) runOnce(ctx context.Context) Result {
	var result Result
	dir := p.cfg.Paths.Inbound
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, fmt.Sprintf("read inbound dir %s: %v", dir, err))
		}
		return result
	}

	names := make([]string, 0, len(entries))
	for _, de := range entries {
		if !de.IsDir() {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(dir, name)
		ok, err := packet.IsPacket(path, p.cfg.Archivers)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("check %s: %v", name, err))
			continue
		}
		if !ok {
			continue
		}
		run, err := p.processPacket(ctx, path)
		switch {
		case errors.Is(err, ErrDuplicate):
			result.Duplicates++
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		default:
			result.Packets++
			result.Messages += run.Written
			result.Skipped += run.Skipped
		}
	}
	return result
}

// ProcessPacket extracts the packet at path, loads its control file, builds
// the index under the configured index directory and records the run in the
// catalog. A packet whose fingerprint already has a successful run returns
// that run with ErrDuplicate.
func (p *Processor) ProcessPacket(ctx context.Context, path string) (catalog.Run, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processPacket(ctx, path)
}

func (p *Processor) processPacket(ctx context.Context, path string) (catalog.Run, error) {
	fp, err := catalog.Fingerprint(path)
	if err != nil {
		return catalog.Run{}, err
	}
	if prev, found, err := p.catalog.Get(fp); err != nil {
		return catalog.Run{}, err
	} else if found && prev.OK() {
		logging.Debug("%s already indexed by run %s", path, prev.ID)
		return prev, ErrDuplicate
	}

	run := catalog.Run{
		Packet:      path,
		Fingerprint: fp,
		StartedAt:   time.Now(),
	}
	runErr := p.index(ctx, path, &run)
	run.FinishedAt = time.Now()
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if run.ID == "" {
		run.ID = fp[:16]
	}
	if err := p.catalog.Record(run); err != nil {
		p.log.Printf("ERROR: failed to record run for %s: %v", path, err)
		if runErr == nil {
			runErr = err
		}
	}
	return run, runErr
}

func (p *Processor) index(ctx context.Context, path string, run *catalog.Run) error {
	stem := packetStem(path)
	workDir := filepath.Join(p.cfg.Paths.Work, stem)
	if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("clear work dir %s: %w", workDir, err)
	}
	defer os.RemoveAll(workDir)

	if _, err := packet.Extract(ctx, path, workDir, p.cfg.Archivers); err != nil {
		return err
	}

	ctrlOpts, err := p.cfg.ControlOptions()
	if err != nil {
		return err
	}
	sess := control.NewSession(ctrlOpts...)
	if err := sess.Load(filepath.Join(workDir, ControlFile)); err != nil {
		// Messages still index without names; the conference stays unresolved.
		p.log.Printf("WARN: %s: %v", filepath.Base(path), err)
		sess = nil
	}

	name := stem
	if sess != nil && sess.Info.BBSID != "" {
		run.BBSID = sess.Info.BBSID
		name = strings.ToLower(sess.Info.BBSID)
	}

	opts := append(p.cfg.IndexOptions(p.codec), index.WithLogger(p.log))
	res := index.MkIndex(workDir, filepath.Join(p.cfg.Paths.Index, name), sess, opts...)
	run.ID = res.RunID
	run.Index = res.Index
	run.Written = res.Written
	run.Skipped = len(res.Skipped)
	return res.Err
}

func packetStem(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}
