package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"bloggerator/generator"
	"bloggerator/media"
)

// --- Requests ---

type apiKeyReq struct {
	APIKey string `json:"apiKey"`
}

func (r apiKeyReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.APIKey, validation.Required),
	)
}

type markdownReq struct {
	Markdown *string `json:"markdown"`
}

func (r markdownReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Markdown, validation.NotNil),
	)
}

type placeholderReq struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

func (r placeholderReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.In(string(generator.MediaImage), string(generator.MediaVideo))),
	)
}

type promptReq struct {
	Prompt string `json:"prompt"`
}

type publishReq struct {
	Prefix string `json:"prefix"`
}

// --- Responses ---

type postResp struct {
	Post  generator.GeneratedPost `json:"post"`
	Stats generator.PostStats     `json:"stats"`
}

type siblingResp struct {
	PostID   string             `json:"postId"`
	Language generator.Language `json:"language"`
	Error    string             `json:"error,omitempty"`
}

type mediaResp struct {
	Placeholder generator.MediaPlaceholder `json:"placeholder"`
	Language    generator.Language         `json:"language"`
	State       media.State                `json:"state"`
}

// bind decodes a JSON body and runs its ozzo rules.
func bind(c *gin.Context, dst validation.Validatable) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, err)
		return false
	}
	if err := dst.Validate(); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func (s *Server) session(c *gin.Context) (*generator.Session, bool) {
	sess, ok := s.store.get(c.Param("id"))
	if !ok {
		writeError(c, errSessionNotFound)
		return nil, false
	}
	return sess, true
}

func langParam(c *gin.Context) (generator.Language, bool) {
	lang, ok := generator.ParseLanguage(c.Param("lang"))
	if !ok {
		writeError(c, fmt.Errorf("%w: %s", generator.ErrPostNotFound, c.Param("lang")))
		return "", false
	}
	return lang, true
}

// --- Settings ---

func (s *Server) handleLanguages(c *gin.Context) {
	out := make([]gin.H, 0, len(generator.SupportedLanguages))
	for _, l := range generator.SupportedLanguages {
		out = append(out, gin.H{"code": l, "name": l.DisplayName()})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAPIKeyStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"configured": s.keys.HasKey()})
}

func (s *Server) handleAPIKeySet(c *gin.Context) {
	var req apiKeyReq
	if !bind(c, &req) {
		return
	}
	s.keys.Set(req.APIKey)
	s.logger.Info("api key updated")
	c.JSON(http.StatusOK, gin.H{"configured": s.keys.HasKey()})
}

func (s *Server) handleAPIKeyClear(c *gin.Context) {
	s.keys.Clear()
	s.logger.Info("api key cleared")
	c.JSON(http.StatusOK, gin.H{"configured": s.keys.HasKey()})
}

// --- Sessions ---

func (s *Server) handleSessionCreate(c *gin.Context) {
	var req generator.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id := uuid.NewString()
	sess := generator.NewSession(id, req, s.agent, s.reconciler)
	if _, err := sess.Propose(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	s.store.set(id, sess)
	s.logger.Info("session created", "session_id", id, "languages", len(req.TargetLanguages))
	c.JSON(http.StatusCreated, sess.View())
}

func (s *Server) handleSessionGet(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handleSessionDelete(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	for _, p := range sess.Posts() {
		for _, mp := range p.MediaPlaceholders {
			s.media.Forget(mp.ID)
		}
	}
	s.store.delete(sess.ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSessionRegenerate(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var stale []string
	for _, p := range sess.Posts() {
		for _, mp := range p.MediaPlaceholders {
			stale = append(stale, mp.ID)
		}
	}
	if _, err := sess.Propose(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	for _, id := range stale {
		s.media.Forget(id)
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handleStats(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	out := map[generator.Language]generator.PostStats{}
	for _, p := range sess.Posts() {
		out[p.Language] = generator.Stats(p)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handlePublish(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if s.publisher == nil {
		writeError(c, errPublisherDisabled)
		return
	}
	var req publishReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	manifest, err := s.publisher.Export(c.Request.Context(), req.Prefix, sess.Posts())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, manifest)
}

// --- Posts ---

func (s *Server) handlePostGet(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	lang, ok := langParam(c)
	if !ok {
		return
	}
	post, found := sess.Post(lang)
	if !found {
		writeError(c, fmt.Errorf("%w: %s", generator.ErrPostNotFound, lang))
		return
	}
	c.JSON(http.StatusOK, postResp{Post: post, Stats: generator.Stats(post)})
}

func (s *Server) handleBeginEdit(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	lang, ok := langParam(c)
	if !ok {
		return
	}
	if err := sess.BeginEdit(lang); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handleMarkdownUpdate(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	lang, ok := langParam(c)
	if !ok {
		return
	}
	var req markdownReq
	if !bind(c, &req) {
		return
	}
	if err := sess.UpdateMarkdown(lang, *req.Markdown); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handleSync(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	lang, ok := langParam(c)
	if !ok {
		return
	}
	report, err := sess.Sync(c.Request.Context(), lang)
	results := make([]siblingResp, 0, len(report.Results))
	for _, r := range report.Results {
		sr := siblingResp{PostID: r.PostID, Language: r.Language}
		if r.Err != nil {
			sr.Error = r.Err.Error()
		}
		results = append(results, sr)
	}
	if err != nil {
		status, code := statusFor(err)
		c.AbortWithStatusJSON(status, gin.H{
			"error":   code,
			"message": err.Error(),
			"results": results,
			"session": sess.View(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "session": sess.View()})
}

// --- Media ---

func (s *Server) handlePlaceholderAdd(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	lang, ok := langParam(c)
	if !ok {
		return
	}
	var req placeholderReq
	if !bind(c, &req) {
		return
	}
	mp, err := sess.AddPlaceholder(lang, generator.MediaType(req.Type), req.Prompt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mediaResp{Placeholder: mp, Language: lang, State: s.media.State(mp.ID)})
}

func (s *Server) handleMediaList(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	out := []mediaResp{}
	for _, p := range sess.Posts() {
		for _, mp := range p.MediaPlaceholders {
			out = append(out, mediaResp{Placeholder: mp, Language: p.Language, State: s.media.State(mp.ID)})
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleMediaGet(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	mp, lang, err := sess.Placeholder(c.Param("mediaId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mediaResp{Placeholder: mp, Language: lang, State: s.media.State(mp.ID)})
}

func (s *Server) handlePlaceholderUpdate(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req promptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id := c.Param("mediaId")
	if err := sess.UpdatePlaceholderPrompt(id, req.Prompt); err != nil {
		writeError(c, err)
		return
	}
	mp, lang, err := sess.Placeholder(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mediaResp{Placeholder: mp, Language: lang, State: s.media.State(id)})
}

func (s *Server) handlePlaceholderRemove(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	id := c.Param("mediaId")
	if err := sess.RemovePlaceholder(id); err != nil {
		writeError(c, err)
		return
	}
	s.media.Forget(id)
	c.Status(http.StatusNoContent)
}

// handleMediaGenerate starts a job for one placeholder. The job runs in the
// background and the state endpoint reports progress; ?wait=true runs it
// inline and returns the result.
func (s *Server) handleMediaGenerate(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	mp, lang, err := sess.Placeholder(c.Param("mediaId"))
	if err != nil {
		writeError(c, err)
		return
	}

	if c.Query("wait") == "true" {
		res, err := s.runMediaJob(c.Request.Context(), sess, lang, mp)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		_, _ = s.runMediaJob(s.ctx, sess, lang, mp)
	}()
	c.JSON(http.StatusAccepted, mediaResp{Placeholder: mp, Language: lang, State: media.State{IsGenerating: true}})
}

// runMediaJob generates into a copy of the placeholder and attaches the
// result to the session only if the placeholder still exists.
func (s *Server) runMediaJob(ctx context.Context, sess *generator.Session, lang generator.Language, mp generator.MediaPlaceholder) (media.Result, error) {
	res, err := s.media.Generate(ctx, lang, &mp, func(p media.Progress) {
		s.logger.Debug("media progress", "media_id", mp.ID, "status", p.Status, "elapsed", p.ElapsedSeconds)
	})
	if err != nil {
		return media.Result{}, err
	}
	if err := sess.AttachMedia(mp.ID, res.URL); err != nil {
		if errors.Is(err, generator.ErrMediaNotFound) {
			s.logger.Info("media result discarded", "media_id", mp.ID, "reason", "placeholder removed")
		}
		return media.Result{}, err
	}
	return res, nil
}
