// Package watch implements the Watcher/Sync stage (spec §4.1, component A):
// it subscribes to filesystem notifications before walking the tree once,
// then releases the buffered and subsequent notifications in order. Getting
// that ordering right is the entire point of this package — see "Why the
// order matters" in spec §4.1.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/arashk/dirdex/internal/genstate"
	"github.com/arashk/dirdex/internal/model"
)

// Config configures one run of the Watcher/Sync stage.
type Config struct {
	Root           string
	EnableWatcher  bool
	IgnorePatterns []string
	EnableLogging  *atomic.Bool // shared flag; nil means "always log"
	MaxWalkRetries int
}

// DefaultConfig returns the spec-mandated retry count with no ignore
// patterns, matching a literal reading of spec §4.1.
func DefaultConfig(root string) Config {
	return Config{
		Root:           root,
		EnableWatcher:  true,
		MaxWalkRetries: 10,
	}
}

// Sync runs the Watcher/Sync stage. It sends FileSyncEvents and
// StatusUpdates on the given channels until ctx is cancelled or a fatal
// error occurs (overflow, missing root).
type Sync struct {
	cfg  Config
	gen  *genstate.Generation
	logf func(format string, args ...interface{})

	events  chan<- model.FileSyncEvent
	status  chan<- model.StatusUpdate
	ignore  *gitignore.GitIgnore
	fsw     *fsnotify.Watcher
}

// New creates a Sync stage. events and status must be large enough (or
// unbounded, per spec §5 Backpressure) that the watcher never has to drop
// notifications.
func New(cfg Config, gen *genstate.Generation, events chan<- model.FileSyncEvent, status chan<- model.StatusUpdate) *Sync {
	s := &Sync{
		cfg:    cfg,
		gen:    gen,
		events: events,
		status: status,
		ignore: gitignore.CompileIgnoreLines(cfg.IgnorePatterns...),
	}
	s.logf = func(format string, args ...interface{}) {
		if s.cfg.EnableLogging != nil && !s.cfg.EnableLogging.Load() {
			return
		}
		log.Printf(format, args...)
	}
	return s
}

// Run executes steps 1-5 of spec §4.1. It returns nil only when ctx is
// cancelled; any other return is a fatal generation error.
func (s *Sync) Run(ctx context.Context) error {
	if _, err := os.Stat(s.cfg.Root); err != nil {
		return fmt.Errorf("%w: %s", ErrRootNotFound, s.cfg.Root)
	}

	if !s.cfg.EnableWatcher {
		return s.runWatcherOff(ctx)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}
	defer fsw.Close()
	s.fsw = fsw

	// Step 1: subscribe first. Buffer everything the notifier reports
	// while we walk, so nothing that happens during the walk is lost.
	if err := s.addTree(fsw, s.cfg.Root); err != nil {
		return err
	}

	var buffered []fsnotify.Event
	bufferDone := make(chan struct{})
	bufferCtx, cancelBuffer := context.WithCancel(ctx)
	defer cancelBuffer()

	overflow := make(chan error, 1)
	go func() {
		defer close(bufferDone)
		for {
			select {
			case <-bufferCtx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				buffered = append(buffered, ev)
				s.status <- model.StatusUpdate{Kind: model.StatusWatcherDiscoveredFileDuringInit, At: time.Now()}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				if isOverflow(err) {
					select {
					case overflow <- ErrOverflow:
					default:
					}
				}
			}
		}
	}()

	// Step 2.
	s.status <- model.StatusUpdate{Kind: model.StatusWatcherStarted, At: time.Now()}

	// Step 3: walk once, with retries.
	if err := s.walkWithRetries(ctx); err != nil {
		cancelBuffer()
		<-bufferDone
		return err
	}

	// Step 4.
	s.status <- model.StatusUpdate{Kind: model.StatusAllFilesDiscovered, At: time.Now()}

	// Step 5: stop buffering and replay what we collected, then keep
	// streaming live notifications as WATCHER-sourced events.
	cancelBuffer()
	<-bufferDone

	select {
	case err := <-overflow:
		return err
	default:
	}

	for _, ev := range buffered {
		s.emitNotification(ev)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			s.emitNotification(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			if isOverflow(err) {
				return ErrOverflow
			}
			s.logf("watch: notifier error: %v", err)
		}
	}
}

// runWatcherOff performs a one-shot walk and then parks until cancelled
// (spec §4.1 Watcher-off mode).
func (s *Sync) runWatcherOff(ctx context.Context) error {
	if err := s.walkWithRetries(ctx); err != nil {
		return err
	}
	s.status <- model.StatusUpdate{Kind: model.StatusAllFilesDiscovered, At: time.Now()}
	<-ctx.Done()
	return nil
}

// walkWithRetries performs the initial tree walk, making up to
// MaxWalkRetries attempts in total with a linear (attempt-1)*1s backoff
// before each attempt after the first (spec §4.1).
func (s *Sync) walkWithRetries(ctx context.Context) error {
	retries := s.cfg.MaxWalkRetries
	if retries <= 0 {
		retries = 10
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Duration(attempt-1) * time.Second):
			}
		}

		err := s.walkOnce()
		if err == nil {
			return nil
		}
		lastErr = err

		if _, statErr := os.Stat(s.cfg.Root); statErr != nil {
			return fmt.Errorf("%w: %s", ErrRootNotFound, s.cfg.Root)
		}
	}
	return fmt.Errorf("initial walk failed after %d attempts: %w", retries, lastErr)
}

func (s *Sync) walkOnce() error {
	return filepath.Walk(s.cfg.Root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(s.cfg.Root, p)
		if relErr != nil {
			rel = p
		}
		if s.ignore != nil && rel != "." && s.ignore.MatchesPath(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		abs, absErr := filepath.Abs(p)
		if absErr != nil {
			abs = p
		}
		fa := s.gen.FileAddresses.Intern(abs)
		t := s.gen.Next()
		s.events <- model.FileSyncEvent{
			T:      t,
			FA:     fa,
			Source: model.SourceInitialSync,
			Type:   model.EventCreate,
		}
		s.status <- model.StatusUpdate{Kind: model.StatusFileUpdated, At: time.Now()}
		return nil
	})
}

// addTree subscribes fsw to start and, recursively, every subdirectory not
// matched by the ignore patterns (matched relative to s.cfg.Root, not
// start, so a newly created nested directory is filtered the same way the
// initial walk filters it).
func (s *Sync) addTree(fsw *fsnotify.Watcher, start string) error {
	return filepath.Walk(start, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.cfg.Root, p)
		if relErr != nil {
			rel = p
		}
		if s.ignore != nil && rel != "." && s.ignore.MatchesPath(rel) {
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
}

// emitNotification maps one native fsnotify event into a WATCHER-sourced
// FileSyncEvent, per the mapping in spec §4.1 step 5.
func (s *Sync) emitNotification(ev fsnotify.Event) {
	rel, err := filepath.Rel(s.cfg.Root, ev.Name)
	if err != nil {
		rel = ev.Name
	}
	if s.ignore != nil && s.ignore.MatchesPath(rel) {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if s.fsw != nil {
				if err := s.addTree(s.fsw, ev.Name); err != nil {
					s.logf("watch: failed to watch new directory %s: %v", ev.Name, err)
				}
			}
			return
		}
	}

	var typ model.EventType
	switch {
	case ev.Op&fsnotify.Create != 0:
		typ = model.EventCreate
	case ev.Op&fsnotify.Write != 0:
		typ = model.EventModify
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		typ = model.EventDelete
	default:
		return
	}

	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		abs = ev.Name
	}
	fa := s.gen.FileAddresses.Intern(abs)
	t := s.gen.Next()
	s.events <- model.FileSyncEvent{
		T:      t,
		FA:     fa,
		Source: model.SourceWatcher,
		Type:   typ,
	}
	s.status <- model.StatusUpdate{Kind: model.StatusFileUpdated, At: time.Now()}
}

func isOverflow(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "overflow")
}
