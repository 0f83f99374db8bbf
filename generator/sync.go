package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Reconciler propagates an edit of one variant into its siblings, one
// remote call per sibling.
type Reconciler struct {
	llm         LLMClient
	concurrency int
	logger      *slog.Logger
}

// NewReconciler builds a reconciler. concurrency bounds the sibling calls
// in flight; values below 1 mean one at a time, in sibling order.
func NewReconciler(llm LLMClient, concurrency int, logger *slog.Logger) (*Reconciler, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{llm: llm, concurrency: concurrency, logger: logger}, nil
}

// SiblingResult is the outcome for one sibling variant.
type SiblingResult struct {
	PostID   string
	Language Language
	Markdown string
	Err      error
}

// SyncReport collects the sibling outcomes of one sync run.
type SyncReport struct {
	EditedLanguage Language
	Results        []SiblingResult
}

// Succeeded reports whether every sibling call succeeded.
func (r SyncReport) Succeeded() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return false
		}
	}
	return true
}

// Err joins the sibling failures, nil when all succeeded.
func (r SyncReport) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", res.Language, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Reconcile asks the model to apply the diff between snapshot and edited to
// every sibling. Every sibling is attempted even when others fail; the call
// returns only after all of them settled. An empty reply keeps the
// sibling's prior text.
func (r *Reconciler) Reconcile(ctx context.Context, editedLang Language, snapshot, edited string, siblings []GeneratedPost) SyncReport {
	report := SyncReport{
		EditedLanguage: editedLang,
		Results:        make([]SiblingResult, len(siblings)),
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, sibling := range siblings {
		g.Go(func() error {
			res := SiblingResult{PostID: sibling.ID, Language: sibling.Language, Markdown: sibling.Markdown}
			reply, err := r.llm.Complete(ctx, BuildSyncPrompt(editedLang, snapshot, edited, sibling))
			if err != nil {
				res.Err = Remote("sync", err)
				r.logger.Warn("sibling sync failed", "post_id", sibling.ID, "language", sibling.Language, "error", err.Error())
			} else if md := stripFences(reply); md != "" {
				res.Markdown = md
			}
			report.Results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// stripFences removes a code fence wrapped around the whole reply.
func stripFences(reply string) string {
	md := strings.TrimSpace(reply)
	if !strings.HasPrefix(md, "```") || !strings.HasSuffix(md, "```") || len(md) < 6 {
		return md
	}
	body := strings.TrimSuffix(md, "```")
	if nl := strings.Index(body, "\n"); nl >= 0 {
		return strings.TrimSpace(body[nl+1:])
	}
	return md
}
