package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bloggerator/generator"
)

var (
	// ErrManagerClosed is returned by jobs that outlive their manager.
	ErrManagerClosed = errors.New("media: manager closed")
	// ErrSuperseded is returned by a job whose placeholder was restarted
	// while it ran. Its result is dropped.
	ErrSuperseded = errors.New("media: job superseded by a newer attempt")
)

const (
	DefaultTickInterval = time.Second
	DefaultPollInterval = 10 * time.Second
)

// Option configures a Manager.
type Option func(*Manager)

// WithIntervals overrides the elapsed-time tick and the video poll cadence.
func WithIntervals(tick, poll time.Duration) Option {
	return func(m *Manager) {
		if tick > 0 {
			m.tick = tick
		}
		if poll > 0 {
			m.poll = poll
		}
	}
}

// WithMaxVideoWait bounds how long a video job may poll. Zero means no bound.
func WithMaxVideoWait(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.maxVideoWait = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDownloader replaces the HTTP downloader used for finished videos.
func WithDownloader(d Downloader) Option {
	return func(m *Manager) {
		if d != nil {
			m.download = d
		}
	}
}

// Manager runs media jobs keyed by placeholder id. Jobs on different keys
// never touch each other's state; a new job on the same key supersedes the
// old one's state updates.
type Manager struct {
	images   ImageGenerator
	videos   VideoGenerator
	download Downloader
	store    Store
	keys     generator.KeySource
	logger   *slog.Logger

	tick         time.Duration
	poll         time.Duration
	maxVideoWait time.Duration

	reg       *registry
	done      chan struct{}
	closeOnce sync.Once
}

func NewManager(images ImageGenerator, videos VideoGenerator, store Store, keys generator.KeySource, opts ...Option) (*Manager, error) {
	if images == nil || videos == nil {
		return nil, fmt.Errorf("media generators are required")
	}
	if store == nil {
		return nil, fmt.Errorf("media store is required")
	}
	if keys == nil {
		return nil, fmt.Errorf("key source is required")
	}
	m := &Manager{
		images:   images,
		videos:   videos,
		download: NewHTTPDownloader(nil),
		store:    store,
		keys:     keys,
		logger:   slog.Default(),
		tick:     DefaultTickInterval,
		poll:     DefaultPollInterval,
		reg:      newRegistry(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Generate dispatches on the placeholder's media type.
func (m *Manager) Generate(ctx context.Context, lang generator.Language, p *generator.MediaPlaceholder, onProgress func(Progress)) (Result, error) {
	if p.Type == generator.MediaVideo {
		return m.GenerateVideo(ctx, lang, p, onProgress)
	}
	return m.GenerateImage(ctx, lang, p)
}

// GenerateImage produces one image for p and attaches it as a data URL.
func (m *Manager) GenerateImage(ctx context.Context, lang generator.Language, p *generator.MediaPlaceholder) (Result, error) {
	attempt, err := m.begin(p.ID)
	if err != nil {
		return Result{}, err
	}
	res, err := m.runImage(ctx, lang, p)
	return m.finish(p, attempt, res, err)
}

// GenerateVideo starts a video operation for p and polls it to completion,
// reporting progress after each poll.
func (m *Manager) GenerateVideo(ctx context.Context, lang generator.Language, p *generator.MediaPlaceholder, onProgress func(Progress)) (Result, error) {
	attempt, err := m.begin(p.ID)
	if err != nil {
		return Result{}, err
	}
	res, err := m.runVideo(ctx, attempt, lang, p, onProgress)
	return m.finish(p, attempt, res, err)
}

// State returns the live state for a placeholder id.
func (m *Manager) State(id string) State {
	return m.reg.get(id)
}

// States snapshots every tracked placeholder.
func (m *Manager) States() map[string]State {
	return m.reg.snapshot()
}

// Forget drops the state of a removed placeholder and stops its ticker.
func (m *Manager) Forget(id string) {
	m.reg.forget(id)
}

// Close stops all tickers and pending waits. In-flight remote calls are
// left to settle; their results are discarded.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.reg.close()
	})
}

func (m *Manager) begin(id string) (uint64, error) {
	attempt, stop, ok := m.reg.begin(id)
	if !ok {
		return 0, ErrManagerClosed
	}
	go m.runTicker(id, attempt, stop)
	return attempt, nil
}

func (m *Manager) runTicker(id string, attempt uint64, stop <-chan struct{}) {
	t := time.NewTicker(m.tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-m.done:
			return
		case <-t.C:
			if !m.reg.tick(id, attempt) {
				return
			}
		}
	}
}

func (m *Manager) finish(p *generator.MediaPlaceholder, attempt uint64, res Result, err error) (Result, error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if ferr := m.reg.finish(p.ID, attempt, msg); ferr != nil {
		if errors.Is(ferr, ErrSuperseded) {
			m.logger.Info("media result discarded", "media_id", p.ID, "reason", "superseded")
		}
		return Result{}, ferr
	}
	if err != nil {
		m.logger.Warn("media job failed", "media_id", p.ID, "type", p.Type, "error", err)
		return Result{}, err
	}
	p.Attach(res.URL)
	m.logger.Info("media job finished", "media_id", p.ID, "type", p.Type, "elapsed", res.ElapsedSeconds)
	return res, nil
}

func (m *Manager) runImage(ctx context.Context, lang generator.Language, p *generator.MediaPlaceholder) (Result, error) {
	if _, err := m.keys.APIKey(); err != nil {
		return Result{}, err
	}
	img, err := m.images.GenerateImage(ctx, generator.BuildImagePrompt(p.Prompt, lang))
	if err != nil {
		return Result{}, generator.Remote("image", err)
	}
	if len(img.Data) == 0 || !strings.HasPrefix(img.MIMEType, "image/") {
		return Result{}, fmt.Errorf("%w: reply carried no image", generator.ErrNoMediaProduced)
	}
	return Result{URL: DataURL(img.MIMEType, img.Data), MIMEType: img.MIMEType}, nil
}

func (m *Manager) runVideo(ctx context.Context, attempt uint64, lang generator.Language, p *generator.MediaPlaceholder, onProgress func(Progress)) (Result, error) {
	key, err := m.keys.APIKey()
	if err != nil {
		return Result{}, err
	}
	m.report(p.ID, attempt, Progress{Status: "starting"}, onProgress)

	op, err := m.videos.StartVideo(ctx, generator.BuildVideoPrompt(p.Prompt, lang))
	if err != nil {
		return Result{}, generator.Remote("video start", err)
	}
	m.logger.Info("video operation started", "media_id", p.ID, "operation", op.Name)

	step := m.pollUnits()
	elapsed := 0
	for !op.Done {
		if m.maxVideoWait > 0 && time.Duration(elapsed)*m.tick >= m.maxVideoWait {
			return Result{}, fmt.Errorf("%w: video not ready after %d seconds", generator.ErrTimeout, elapsed)
		}
		m.report(p.ID, attempt, Progress{Status: "generating", ElapsedSeconds: elapsed}, onProgress)
		if err := m.wait(ctx, m.poll); err != nil {
			return Result{}, err
		}
		elapsed += step
		op, err = m.videos.PollVideo(ctx, op)
		if err != nil {
			return Result{}, generator.Remote("video poll", err)
		}
		if op == nil {
			return Result{}, generator.Remote("video poll", errors.New("empty operation"))
		}
	}

	if op.VideoURI == "" {
		return Result{}, fmt.Errorf("%w: operation finished without a video", generator.ErrNoMediaProduced)
	}
	m.report(p.ID, attempt, Progress{Status: "downloading", ElapsedSeconds: elapsed}, onProgress)

	data, mimeType, err := m.download.Download(ctx, op.VideoURI, key)
	if err != nil {
		var de *generator.MediaDownloadError
		if !errors.As(err, &de) {
			err = &generator.MediaDownloadError{Err: err}
		}
		return Result{}, err
	}
	url, err := m.store.Save(ctx, p.ID, mimeType, data)
	if err != nil {
		return Result{}, fmt.Errorf("store video: %w", err)
	}
	return Result{URL: url, MIMEType: mimeType, ElapsedSeconds: elapsed}, nil
}

// report publishes elapsed time from a poll. The poll's value replaces
// whatever the ticker accumulated.
func (m *Manager) report(id string, attempt uint64, pr Progress, onProgress func(Progress)) {
	if !m.reg.update(id, attempt, func(s *State) { s.ElapsedSeconds = pr.ElapsedSeconds }) {
		return
	}
	if onProgress != nil {
		onProgress(pr)
	}
}

// pollUnits is how many ticks one poll interval spans.
func (m *Manager) pollUnits() int {
	n := int(m.poll / m.tick)
	if n < 1 {
		return 1
	}
	return n
}

func (m *Manager) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrManagerClosed
	}
}
