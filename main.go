package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/tachyonlabs/tachyon-tex/internal"
)

const (
	defaultPort           = "3001"
	maxConcurrentRequests = 4
	shutdownTimeout       = 30 * time.Second
)

var requestQueue chan *internal.CompileJob

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	app := &cli.App{
		Name:  "tachyon-tex",
		Usage: "content-addressed LaTeX compilation coordination service",

		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "warmup", Usage: "load the engine configuration, log readiness and exit"},
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
		},

		Before: func(c *cli.Context) error {
			level, err := zerolog.ParseLevel(c.String("log-level"))
			if err != nil {
				level = zerolog.InfoLevel
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},

		Action: func(c *cli.Context) error {
			if c.Bool("warmup") {
				return runWarmup()
			}
			return runServe(c)
		},

		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and WebSocket coordination server",
				Action: runServe,
			},
			{
				Name:      "compile",
				Usage:     "compile a single .tex file in the current directory and exit",
				ArgsUsage: "<file.tex>",
				Action:    runCompileOnce,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("fatal error")
	}
}

func runWarmup() error {
	engine := internal.NewTectonicEngine()
	log.Info().Str("binary", engine.Binary).Dur("timeout", engine.Timeout).Msg("engine configuration loaded")
	log.Info().Msg("warmup OK")
	return nil
}

func runServe(c *cli.Context) error {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	historyDir := os.Getenv("HISTORY_DIR")
	if historyDir == "" {
		historyDir = "./logs"
	}
	if err := os.MkdirAll(historyDir, 0o755); err != nil {
		log.Warn().Err(err).Msg("failed to create history directory")
	}
	internal.SetHistoryDir(historyDir)

	requestQueue = make(chan *internal.CompileJob, maxConcurrentRequests*4)
	internal.SetRequestQueue(requestQueue)

	orch := internal.NewOrchestrator(internal.NewTectonicEngine())

	for i := 0; i < maxConcurrentRequests; i++ {
		go worker(i, orch)
	}

	router := setupRouter(orch)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Int("workers", maxConcurrentRequests).Msg("tachyon-tex server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited")
	return nil
}

func setupRouter(orch *internal.Orchestrator) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(corsMiddleware())

	router.GET("/health", internal.HealthHandler)
	router.POST("/compile", internal.CompileHandler)
	router.POST("/validate", internal.ValidateHandler)
	router.GET("/ws", gin.WrapF(internal.WebSocketHandler(orch)))

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func worker(id int, orch *internal.Orchestrator) {
	log.Info().Int("worker", id).Msg("worker started")
	for job := range requestQueue {
		internal.HandleCompilation(orch, job)
	}
	log.Info().Int("worker", id).Msg("worker stopped")
}

func runCompileOnce(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("usage: tachyon-tex compile <file.tex>")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	orch := internal.NewOrchestrator(internal.NewTectonicEngine())
	result := orch.Compile(context.Background(), internal.InputSet{
		Main:  path,
		Files: []internal.FileEntry{{Path: path, Content: string(content), Kind: internal.ContentRawText}},
	}, time.Now())

	if !result.Success {
		fmt.Fprintln(os.Stderr, result.ErrorMessage)
		fmt.Fprintln(os.Stderr, result.Logs)
		return cli.Exit("compilation failed", 1)
	}

	outPath := path[:len(path)-len(".tex")] + ".pdf"
	if err := os.WriteFile(outPath, result.PDFData, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("wrote %s (%d bytes, %dms)\n", outPath, len(result.PDFData), result.CompileTimeMs)
	return nil
}
