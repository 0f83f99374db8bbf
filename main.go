package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bloggerator/config"
	"bloggerator/gemini"
	"bloggerator/generator"
	"bloggerator/logging"
	"bloggerator/media"
	"bloggerator/publisher"
	"bloggerator/server"
)

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to config.json or config.yaml")
	envFile := flag.String("env", ".env", "optional .env file")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	direction := flag.String("direction", "", "what the posts should be about")
	var langs, refs, ctxURLs listFlag
	flag.Var(&langs, "lang", "target language (pt-br, en, es); repeatable or comma separated")
	flag.Var(&refs, "ref", "reference blog URL; repeatable")
	flag.Var(&ctxURLs, "ctx", "content source URL; repeatable")
	withMedia := flag.Bool("media", false, "generate every media placeholder after the posts")
	out := flag.String("out", "", "export prefix; when set the batch is published")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	app, err := build(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.media.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		if err := runServer(ctx, app, cfg, listen, logger); err != nil {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	req := generator.GenerationRequest{
		ReferenceBlogs: refs,
		ContextURLs:    ctxURLs,
		Direction:      *direction,
	}
	for _, l := range langs {
		lang, ok := generator.ParseLanguage(l)
		if !ok {
			fmt.Fprintf(os.Stderr, "unsupported language %q\n", l)
			os.Exit(1)
		}
		req.TargetLanguages = append(req.TargetLanguages, lang)
	}
	if err := runOnce(ctx, app, req, *withMedia, *out, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type application struct {
	keys       *generator.MemoryKeySource
	agent      *generator.Agent
	reconciler *generator.Reconciler
	media      *media.Manager
	publisher  *publisher.Publisher
}

func build(cfg config.Config, logger *slog.Logger) (*application, error) {
	var fallback generator.KeySource = generator.StaticKey(cfg.APIKey)
	if cfg.Provider == "mock" && cfg.APIKey == "" {
		fallback = generator.StaticKey("offline")
	}
	keys := generator.NewMemoryKeySource(fallback)

	gem, err := gemini.New(keys, cfg.TextModel, cfg.ImageModel, cfg.VideoModel)
	if err != nil {
		return nil, err
	}
	llm, err := buildLLM(cfg, keys, gem)
	if err != nil {
		return nil, err
	}
	agent, err := generator.NewAgent(llm, keys, logger)
	if err != nil {
		return nil, err
	}
	reconciler, err := generator.NewReconciler(agent, cfg.SyncConcurrency, logger)
	if err != nil {
		return nil, err
	}

	mediaStore, err := media.NewDirStore(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		return nil, err
	}
	mgr, err := media.NewManager(gem, gem, mediaStore, keys,
		media.WithIntervals(cfg.TickInterval.Std(), cfg.PollInterval.Std()),
		media.WithMaxVideoWait(cfg.MaxVideoWait.Std()),
		media.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	var objects publisher.ObjectStore
	if cfg.S3 != nil {
		objects, err = publisher.NewS3Store(*cfg.S3)
	} else {
		objects, err = publisher.NewDirStore(cfg.ExportDir, cfg.ExportURL)
	}
	if err != nil {
		return nil, fmt.Errorf("export store: %w", err)
	}
	pub, err := publisher.New(objects, publisher.Options{
		MediaDir:     cfg.MediaDir,
		MediaBaseURL: cfg.MediaBaseURL,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	return &application{keys: keys, agent: agent, reconciler: reconciler, media: mgr, publisher: pub}, nil
}

func buildLLM(cfg config.Config, keys generator.KeySource, gem *gemini.Client) (generator.LLMClient, error) {
	switch cfg.Provider {
	case "gemini":
		return gem, nil
	case "openai":
		// Any OpenAI-compatible endpoint works through base_url.
		return generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider: cfg.Provider,
			Model:    cfg.TextModel,
			Keys:     keys,
			BaseURL:  cfg.BaseURL,
		})
	case "mock":
		return generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}

func runServer(ctx context.Context, app *application, cfg config.Config, listen string, logger *slog.Logger) error {
	srv, err := server.New(server.Options{
		Agent:        app.agent,
		Reconciler:   app.reconciler,
		Keys:         app.keys,
		Media:        app.media,
		Publisher:    app.publisher,
		MediaDir:     cfg.MediaDir,
		MediaBaseURL: cfg.MediaBaseURL,
		AllowOrigins: []string{"http://localhost:4200", "http://localhost:3000"},
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	httpSrv := &http.Server{Addr: listen, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting web server", "addr", listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		srv.Close()
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err = httpSrv.Shutdown(shutdownCtx)
	srv.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runOnce(ctx context.Context, app *application, req generator.GenerationRequest, withMedia bool, prefix string, logger *slog.Logger) error {
	sess := generator.NewSession("cli", req, app.agent, app.reconciler)
	posts, err := sess.Propose(ctx)
	if err != nil {
		return err
	}
	logger.Info("batch generated", "posts", len(posts))

	if withMedia {
		for _, p := range posts {
			for _, mp := range p.MediaPlaceholders {
				job := mp
				res, err := app.media.Generate(ctx, p.Language, &job, func(pr media.Progress) {
					logger.Info("video progress", "media_id", job.ID, "status", pr.Status, "elapsed", pr.ElapsedSeconds)
				})
				if err != nil {
					logger.Warn("media generation failed", "media_id", job.ID, "error", err)
					continue
				}
				if err := sess.AttachMedia(job.ID, res.URL); err != nil {
					return err
				}
			}
		}
	}

	if prefix == "" {
		for _, p := range sess.Posts() {
			st := generator.Stats(p)
			fmt.Printf("===== %s (%s) | %d words, %d min, SEO %s =====\n%s\n\n",
				p.Title, p.Language.DisplayName(), st.Words, st.ReadingMinutes, st.SEORating, p.Markdown)
		}
		return nil
	}
	manifest, err := app.publisher.Export(ctx, prefix, sess.Posts())
	if err != nil {
		return err
	}
	for _, p := range manifest.Posts {
		fmt.Println(p.HTMLURL)
	}
	return nil
}
