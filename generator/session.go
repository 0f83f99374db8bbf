package generator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session holds one generated batch plus the edit tracking used to sync
// variants. It is safe for concurrent use; remote calls run outside the
// lock and their results are applied under it.
type Session struct {
	ID      string
	Request GenerationRequest

	mu         sync.Mutex
	posts      []GeneratedPost
	history    []Turn
	original   string
	editedLang Language
	dirty      bool
	syncing    bool

	agent      *Agent
	reconciler *Reconciler
	now        func() time.Time
}

// SessionView is a point-in-time copy of a session.
type SessionView struct {
	ID             string            `json:"id"`
	Request        GenerationRequest `json:"request"`
	Posts          []GeneratedPost   `json:"posts"`
	History        []Turn            `json:"history"`
	HasEdits       bool              `json:"hasEdits"`
	EditedLanguage Language          `json:"editedLanguage,omitempty"`
	Syncing        bool              `json:"syncing"`
}

// NewSession creates a session; no batch is generated yet.
func NewSession(id string, req GenerationRequest, agent *Agent, reconciler *Reconciler) *Session {
	req.Normalize()
	return &Session{
		ID:         id,
		Request:    req,
		agent:      agent,
		reconciler: reconciler,
		now:        time.Now,
	}
}

// NewSessionFromPosts wraps an existing batch.
func NewSessionFromPosts(id string, req GenerationRequest, posts []GeneratedPost, reconciler *Reconciler) *Session {
	s := NewSession(id, req, nil, reconciler)
	s.posts = clonePosts(posts)
	s.appendTurn("import", "", fmt.Sprintf("%d posts", len(posts)))
	return s
}

// Propose generates the batch, replacing any previous one.
func (s *Session) Propose(ctx context.Context) ([]GeneratedPost, error) {
	if s.agent == nil {
		return nil, fmt.Errorf("%w: session has no agent", ErrConfiguration)
	}
	posts, err := s.agent.Generate(ctx, s.Request)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = posts
	s.original, s.editedLang, s.dirty = "", "", false
	s.appendTurn("generate", "", fmt.Sprintf("%d posts", len(posts)))
	return clonePosts(posts), nil
}

func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionView{
		ID:             s.ID,
		Request:        s.Request,
		Posts:          clonePosts(s.posts),
		History:        append([]Turn(nil), s.history...),
		HasEdits:       s.dirty,
		EditedLanguage: s.editedLang,
		Syncing:        s.syncing,
	}
}

func (s *Session) Posts() []GeneratedPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePosts(s.posts)
}

func (s *Session) Post(lang Language) (GeneratedPost, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.postLocked(lang); p != nil {
		return p.Clone(), true
	}
	return GeneratedPost{}, false
}

// HasEdits reports whether a variant has edits not yet synced.
func (s *Session) HasEdits() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// BeginEdit snapshots the variant's current markdown as the sync baseline.
// Re-entering the variant that already has pending edits keeps the
// existing baseline.
func (s *Session) BeginEdit(lang Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginEditLocked(lang)
}

func (s *Session) beginEditLocked(lang Language) error {
	p := s.postLocked(lang)
	if p == nil {
		return fmt.Errorf("%w: language %s", ErrPostNotFound, lang)
	}
	if s.dirty {
		if s.editedLang == lang {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrEditPending, s.editedLang)
	}
	s.original = p.Markdown
	s.editedLang = lang
	return nil
}

// UpdateMarkdown applies a manual edit and tracks it against the baseline.
func (s *Session) UpdateMarkdown(lang Language, markdown string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editedLang != lang || !s.dirty {
		if err := s.beginEditLocked(lang); err != nil {
			return err
		}
	}
	p := s.postLocked(lang)
	p.Markdown = markdown
	s.dirty = markdown != s.original
	return nil
}

// Sync propagates the tracked edit of lang into every other variant.
// Without tracked edits for lang, or without siblings, it does nothing.
// The baseline advances and the edit flag clears only when every sibling
// succeeded; otherwise both stay so the user can retry.
func (s *Session) Sync(ctx context.Context, lang Language) (SyncReport, error) {
	report := SyncReport{EditedLanguage: lang}
	if s.reconciler == nil {
		return report, fmt.Errorf("%w: session has no reconciler", ErrConfiguration)
	}

	s.mu.Lock()
	edited := s.postLocked(lang)
	if edited == nil {
		s.mu.Unlock()
		return report, fmt.Errorf("%w: language %s", ErrPostNotFound, lang)
	}
	if !s.dirty || s.editedLang != lang {
		s.mu.Unlock()
		return report, nil
	}
	if s.syncing {
		s.mu.Unlock()
		return report, ErrSyncInProgress
	}
	var siblings []GeneratedPost
	for _, p := range s.posts {
		if p.Language != lang {
			siblings = append(siblings, p.Clone())
		}
	}
	if len(siblings) == 0 {
		s.mu.Unlock()
		return report, nil
	}
	snapshot, editedText := s.original, edited.Markdown
	s.syncing = true
	s.mu.Unlock()

	report = s.reconciler.Reconcile(ctx, lang, snapshot, editedText, siblings)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncing = false
	updated := 0
	for _, res := range report.Results {
		if res.Err != nil {
			continue
		}
		for i := range s.posts {
			if s.posts[i].ID == res.PostID {
				s.posts[i].Markdown = res.Markdown
				updated++
			}
		}
	}
	if report.Succeeded() {
		s.original = editedText
		s.dirty = false
	}
	s.appendTurn("sync", lang, fmt.Sprintf("%d/%d siblings updated", updated, len(siblings)))
	return report, report.Err()
}

// AddPlaceholder appends a new placeholder to the variant in lang.
func (s *Session) AddPlaceholder(lang Language, t MediaType, prompt string) (MediaPlaceholder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.postLocked(lang)
	if p == nil {
		return MediaPlaceholder{}, fmt.Errorf("%w: language %s", ErrPostNotFound, lang)
	}
	return p.AddPlaceholder(t, prompt), nil
}

func (s *Session) RemovePlaceholder(mediaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].RemovePlaceholder(mediaID) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMediaNotFound, mediaID)
}

func (s *Session) UpdatePlaceholderPrompt(mediaID, prompt string) error {
	return s.withPlaceholder(mediaID, func(_ *GeneratedPost, mp *MediaPlaceholder) {
		mp.Prompt = prompt
	})
}

// Placeholder returns a copy of the placeholder and its post's language.
func (s *Session) Placeholder(mediaID string) (MediaPlaceholder, Language, error) {
	var (
		out  MediaPlaceholder
		lang Language
	)
	err := s.withPlaceholder(mediaID, func(p *GeneratedPost, mp *MediaPlaceholder) {
		out, lang = *mp, p.Language
	})
	return out, lang, err
}

// AttachMedia records a generated media URL. A placeholder removed while
// its job ran is reported as ErrMediaNotFound and the result dropped.
func (s *Session) AttachMedia(mediaID, url string) error {
	return s.withPlaceholder(mediaID, func(_ *GeneratedPost, mp *MediaPlaceholder) {
		mp.Attach(url)
	})
}

func (s *Session) withPlaceholder(mediaID string, fn func(*GeneratedPost, *MediaPlaceholder)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if mp, ok := s.posts[i].Placeholder(mediaID); ok {
			fn(&s.posts[i], mp)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMediaNotFound, mediaID)
}

func (s *Session) postLocked(lang Language) *GeneratedPost {
	for i := range s.posts {
		if s.posts[i].Language == lang {
			return &s.posts[i]
		}
	}
	return nil
}

func (s *Session) appendTurn(kind string, lang Language, summary string) {
	s.history = append(s.history, Turn{
		Kind:      kind,
		Language:  lang,
		Summary:   summary,
		CreatedAt: s.now(),
	})
}

func clonePosts(posts []GeneratedPost) []GeneratedPost {
	out := make([]GeneratedPost, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}
