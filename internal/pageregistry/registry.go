// Package pageregistry implements the Page Registry (spec §2 component I,
// §3, §4.7): named long-lived pages keyed by a user-supplied name, each
// owning a CDP target id, an append-only console log sink and at most one
// active recording, with lifecycle hooks for page close and forced
// shutdown.
//
// Grounded on the teacher's pkg/chrome/manager.go, which keeps a
// process-keyed map of live Chrome processes under one mutex; this adapts
// that bookkeeping pattern to a single shared browser with one CDP target
// per named page instead of one OS process per execution.
package pageregistry

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tripleyak/dev-browser-studio/internal/browserclient"
	"github.com/tripleyak/dev-browser-studio/internal/console"
	"github.com/tripleyak/dev-browser-studio/internal/recording"
	"github.com/tripleyak/dev-browser-studio/internal/videoencoder"
)

// Viewport is the optional sizing hint accepted by POST /pages (spec §6).
type Viewport struct {
	Width  int
	Height int
}

// Entry is one page entry (spec §3): a handle, its target id, its console
// sink and its recording engine. Background sessions (console capture,
// and when recording, screencast) are owned here.
type Entry struct {
	Name        string
	Page        *browserclient.ChromedpPage
	ConsoleSink *console.Sink
	Recorder    *recording.Engine
	TargetID    string
	CreatedAt   time.Time
}

var (
	// ErrInvalidName covers spec §6's validation rule: non-empty, <= 256 bytes.
	ErrInvalidName = fmt.Errorf("name must be a non-empty string of at most 256 bytes")
	ErrExists      = fmt.Errorf("page already exists")
	ErrNotFound    = fmt.Errorf("page not found")
)

// Registry owns every page entry. brCtx is a browser-level chromedp
// context (no target bound) used to create and close targets; it is the
// allocCtx every Entry's ChromedpPage lazily reattaches against (spec §9's
// page-proxy design).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	brCtx       context.Context
	cdpHost     string
	logger      *zap.Logger
	encoder     videoencoder.Encoder
	recordingsDir string

	janitor *cron.Cron
}

// New constructs a Registry bound to brCtx (the shared browser-level
// context) and cdpHost (host:port of the CDP endpoint, used to build
// wsEndpoint values for the HTTP control surface).
func New(brCtx context.Context, cdpHost string, logger *zap.Logger, encoder videoencoder.Encoder, recordingsDir string) *Registry {
	r := &Registry{
		entries:       make(map[string]*Entry),
		brCtx:         brCtx,
		cdpHost:       cdpHost,
		logger:        logger,
		encoder:       encoder,
		recordingsDir: recordingsDir,
	}
	return r
}

// StartJanitor runs a periodic sweep (spec §9's "long-lived per-page
// background tasks ... deterministic teardown") that drops entries whose
// underlying target has died without going through Remove — e.g. the user
// closed the tab directly in a non-headless session.
func (r *Registry) StartJanitor(spec string) error {
	r.janitor = cron.New()
	_, err := r.janitor.AddFunc(spec, func() {
		r.sweepDeadEntries()
	})
	if err != nil {
		return fmt.Errorf("schedule page registry janitor: %w", err)
	}
	r.janitor.Start()
	return nil
}

func (r *Registry) sweepDeadEntries() {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		r.mu.RLock()
		entry, ok := r.entries[name]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		if _, err := entry.Page.URL(context.Background()); err != nil {
			r.logger.Sugar().Infow("janitor removing dead page entry", "name", name, "error", err)
			_ = r.Remove(context.Background(), name)
		}
	}
}

func validateName(name string) error {
	if name == "" || len(name) > 256 {
		return ErrInvalidName
	}
	return nil
}

// WSEndpoint builds the devtools websocket URL for targetID, the value
// surfaced in GET / and POST /pages responses (spec §6).
func (r *Registry) WSEndpoint(targetID string) string {
	return fmt.Sprintf("ws://%s/devtools/page/%s", r.cdpHost, targetID)
}

// Create validates name, opens a new CDP target, and registers a page
// entry with a fresh console sink and recording engine (spec §4.7, §6).
func (r *Registry) Create(ctx context.Context, name string, viewport *Viewport) (*Entry, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.entries[name]; exists {
		r.mu.Unlock()
		return nil, ErrExists
	}
	r.mu.Unlock()

	tid, err := target.CreateTarget("about:blank").Do(r.brCtx)
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}

	pg, err := browserclient.NewChromedpPage(r.brCtx, tid, r.logger)
	if err != nil {
		return nil, fmt.Errorf("attach to new target: %w", err)
	}

	if viewport != nil && viewport.Width > 0 && viewport.Height > 0 {
		if err := pg.SetViewport(ctx, viewport.Width, viewport.Height); err != nil {
			r.logger.Sugar().Warnw("set viewport failed, continuing with default", "name", name, "error", err)
		}
	}

	sink := console.NewSink()
	if err := console.Attach(pg.CDPContext(), sink); err != nil {
		r.logger.Sugar().Warnw("console capture attach failed", "name", name, "error", err)
	}

	entry := &Entry{
		Name:        name,
		Page:        pg,
		ConsoleSink: sink,
		Recorder:    recording.NewEngine(name, pg, sink, r.encoder, r.recordingsDir),
		TargetID:    string(tid),
		CreatedAt:   time.Now(),
	}

	r.mu.Lock()
	r.entries[name] = entry
	r.mu.Unlock()

	return entry, nil
}

// Get returns the entry for name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// List returns every registered page name (spec §6's GET /pages).
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// AcquirePage implements browserclient.Client for the Perception Loop
// (spec §4.5 step 1). The page name must already be registered.
func (r *Registry) AcquirePage(ctx context.Context, name string) (browserclient.Page, error) {
	entry, ok := r.Get(name)
	if !ok {
		return nil, ErrNotFound
	}
	return entry.Page, nil
}

// Remove tears down one page entry: aborts any active recording, closes
// the CDP target, and deletes the entry (spec §3's invariant: "the entry
// is removed when the page closes; all background sessions are detached
// on removal").
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	entry, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.entries, name)
	r.mu.Unlock()

	entry.Recorder.Abort()
	if err := target.CloseTarget(target.ID(entry.TargetID)).Do(r.brCtx); err != nil {
		return fmt.Errorf("close target %s: %w", entry.TargetID, err)
	}
	return nil
}

// Shutdown tears down every registered page concurrently (spec §4.7's
// forced-shutdown abort path), using errgroup so one failure doesn't block
// the others' teardown.
func (r *Registry) Shutdown(ctx context.Context) error {
	if r.janitor != nil {
		r.janitor.Stop()
	}

	names := r.List()
	g, _ := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			return r.Remove(ctx, name)
		})
	}
	return g.Wait()
}

// ParsePageName percent-decodes a :name path parameter (spec §6: "path
// :name is percent-decoded").
func ParsePageName(raw string) (string, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("decode page name: %w", err)
	}
	return decoded, nil
}
