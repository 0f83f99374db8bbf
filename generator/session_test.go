package generator

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testBatch() []GeneratedPost {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []GeneratedPost{
		{ID: "post-pt", Language: LanguagePortuguese, Title: "Olá", Markdown: "# Olá\n\ntexto", GeneratedAt: now},
		{ID: "post-en", Language: LanguageEnglish, Title: "Hello", Markdown: "# Hello\n\ntext", GeneratedAt: now},
		{ID: "post-es", Language: LanguageSpanish, Title: "Hola", Markdown: "# Hola\n\ntexto", GeneratedAt: now},
	}
}

func newTestSession(t *testing.T, llm LLMClient, concurrency int) *Session {
	t.Helper()
	rec, err := NewReconciler(llm, concurrency, nil)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	return NewSessionFromPosts("s1", GenerationRequest{}, testBatch(), rec)
}

func TestSyncPartialFailureKeepsEditFlag(t *testing.T) {
	boom := errors.New("upstream timeout")
	llm := &recordingLLM{reply: func(p Prompt) (string, error) {
		if strings.Contains(p.User, "Adapt the changes to Brazilian Portuguese") {
			return "", boom
		}
		return "# Hola\n\ntexto editado", nil
	}}
	s := newTestSession(t, llm, 1)

	if err := s.BeginEdit(LanguageEnglish); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if err := s.UpdateMarkdown(LanguageEnglish, "# Hello\n\nedited text"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !s.HasEdits() {
		t.Fatal("expected tracked edits")
	}

	report, err := s.Sync(context.Background(), LanguageEnglish)
	if !errors.Is(err, boom) || !errors.Is(err, ErrRemoteService) {
		t.Fatalf("expected joined remote error, got %v", err)
	}
	if report.Succeeded() || len(report.Results) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if llm.calls() != 2 {
		t.Fatalf("every sibling must be attempted, got %d calls", llm.calls())
	}

	pt, _ := s.Post(LanguagePortuguese)
	if pt.Markdown != "# Olá\n\ntexto" {
		t.Errorf("failed sibling must be unchanged, got %q", pt.Markdown)
	}
	es, _ := s.Post(LanguageSpanish)
	if es.Markdown != "# Hola\n\ntexto editado" {
		t.Errorf("successful sibling must be updated, got %q", es.Markdown)
	}
	if !s.HasEdits() {
		t.Error("edit flag must stay set after a partial failure")
	}

	// The baseline did not move: a retry sends the same snapshot.
	llm.reply = func(Prompt) (string, error) { return "# Olá\n\ntexto editado", nil }
	if _, err := s.Sync(context.Background(), LanguageEnglish); err != nil {
		t.Fatalf("retry: %v", err)
	}
	last := llm.prompts[len(llm.prompts)-1]
	if !strings.Contains(last.User, "ORIGINAL POST (before the edits):\n# Hello\n\ntext\n") {
		t.Errorf("retry should reuse the original snapshot:\n%s", last.User)
	}
	if s.HasEdits() {
		t.Error("edit flag should clear once every sibling succeeded")
	}
}

func TestSyncSerializedOrder(t *testing.T) {
	var order []Language
	llm := &recordingLLM{reply: func(p Prompt) (string, error) {
		for _, l := range SupportedLanguages {
			if strings.Contains(p.User, "Adapt the changes to "+l.PromptName()) {
				order = append(order, l)
			}
		}
		return "", nil
	}}
	s := newTestSession(t, llm, 1)
	if err := s.UpdateMarkdown(LanguageSpanish, "# Hola!"); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := s.Sync(context.Background(), LanguageSpanish); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(order) != 2 || order[0] != LanguagePortuguese || order[1] != LanguageEnglish {
		t.Fatalf("expected sibling order pt-br,en got %v", order)
	}
	// Empty replies keep the prior text.
	en, _ := s.Post(LanguageEnglish)
	if en.Markdown != "# Hello\n\ntext" {
		t.Errorf("empty reply should keep prior text, got %q", en.Markdown)
	}
	if s.HasEdits() {
		t.Error("expected edits flushed")
	}
}

func TestSyncBoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	llm := &recordingLLM{reply: func(Prompt) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return "synced", nil
	}}
	s := newTestSession(t, llm, 2)
	if err := s.UpdateMarkdown(LanguagePortuguese, "novo"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Sync(context.Background(), LanguagePortuguese); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if peak.Load() > 2 {
		t.Fatalf("concurrency bound exceeded: %d", peak.Load())
	}
	for _, p := range s.Posts() {
		if p.Language != LanguagePortuguese && p.Markdown != "synced" {
			t.Errorf("%s not synced: %q", p.Language, p.Markdown)
		}
	}
}

func TestSyncNoOps(t *testing.T) {
	llm := &recordingLLM{reply: func(Prompt) (string, error) { return "x", nil }}
	s := newTestSession(t, llm, 1)

	if _, err := s.Sync(context.Background(), LanguageEnglish); err != nil {
		t.Fatalf("sync without edits: %v", err)
	}
	if llm.calls() != 0 {
		t.Fatalf("sync without edits must not call the model")
	}

	if _, err := s.Sync(context.Background(), "fr"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}

	rec, _ := NewReconciler(llm, 1, nil)
	single := NewSessionFromPosts("s2", GenerationRequest{}, testBatch()[:1], rec)
	if err := single.UpdateMarkdown(LanguagePortuguese, "editado"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := single.Sync(context.Background(), LanguagePortuguese); err != nil {
		t.Fatalf("sync without siblings: %v", err)
	}
	if llm.calls() != 0 {
		t.Fatalf("sync without siblings must not call the model")
	}
}

func TestEditTracking(t *testing.T) {
	s := newTestSession(t, MockLLM{}, 1)

	if err := s.UpdateMarkdown(LanguageEnglish, "# Hello\n\ntext"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.HasEdits() {
		t.Error("identical text is not an edit")
	}
	if err := s.UpdateMarkdown(LanguageEnglish, "changed"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.BeginEdit(LanguageSpanish); !errors.Is(err, ErrEditPending) {
		t.Fatalf("expected ErrEditPending, got %v", err)
	}
	if err := s.UpdateMarkdown(LanguageEnglish, "# Hello\n\ntext"); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if s.HasEdits() {
		t.Error("reverting to the snapshot clears the edit flag")
	}
	if err := s.BeginEdit(LanguageSpanish); err != nil {
		t.Fatalf("begin edit after revert: %v", err)
	}
}

func TestMockSyncReturnsEditedText(t *testing.T) {
	s := newTestSession(t, MockLLM{}, 1)
	if err := s.UpdateMarkdown(LanguageEnglish, "# Hello\n\nnew text"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Sync(context.Background(), LanguageEnglish); err != nil {
		t.Fatalf("sync: %v", err)
	}
	es, _ := s.Post(LanguageSpanish)
	if es.Markdown != "# Hello\n\nnew text" {
		t.Fatalf("unexpected mock sync output %q", es.Markdown)
	}
}

func TestPlaceholderLifecycle(t *testing.T) {
	s := newTestSession(t, MockLLM{}, 1)

	mp, err := s.AddPlaceholder(LanguageEnglish, MediaVideo, "timelapse")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if mp.Tool != ToolVeo3 || mp.Generated {
		t.Fatalf("unexpected placeholder: %+v", mp)
	}
	if err := s.UpdatePlaceholderPrompt(mp.ID, "city timelapse"); err != nil {
		t.Fatalf("update prompt: %v", err)
	}
	got, lang, err := s.Placeholder(mp.ID)
	if err != nil || lang != LanguageEnglish || got.Prompt != "city timelapse" || got.Tool != ToolVeo3 {
		t.Fatalf("unexpected lookup: %+v %s %v", got, lang, err)
	}
	if err := s.AttachMedia(mp.ID, "/media/x.mp4"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	got, _, _ = s.Placeholder(mp.ID)
	if !got.Generated || got.URL != "/media/x.mp4" {
		t.Fatalf("attach not applied: %+v", got)
	}
	if err := s.RemovePlaceholder(mp.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.AttachMedia(mp.ID, "late"); !errors.Is(err, ErrMediaNotFound) {
		t.Fatalf("expected ErrMediaNotFound after removal, got %v", err)
	}
	if _, err := s.AddPlaceholder("fr", MediaImage, ""); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestProposeLeavesRequestIntact(t *testing.T) {
	langs := []Language{LanguageEnglish, LanguageEnglish, LanguageSpanish}
	agent, err := NewAgent(MockLLM{}, StaticKey("k"), nil)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := NewReconciler(MockLLM{}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	sess := NewSession("s1", GenerationRequest{Direction: "d", TargetLanguages: langs}, agent, rec)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := sess.Propose(context.Background()); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = sess.View()
		}()
	}
	wg.Wait()

	want := []Language{LanguageEnglish, LanguageSpanish}
	if got := sess.View().Request.TargetLanguages; !slices.Equal(got, want) {
		t.Fatalf("stored languages = %v, want %v", got, want)
	}
	if !slices.Equal(langs, []Language{LanguageEnglish, LanguageEnglish, LanguageSpanish}) {
		t.Fatalf("caller's slice was modified: %v", langs)
	}
	if n := len(sess.Posts()); n != 2 {
		t.Fatalf("expected 2 posts, got %d", n)
	}
}
