package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdf-qa/internal/config"
	"pdf-qa/internal/embedding"
	"pdf-qa/internal/helper"
	"pdf-qa/internal/llmservice"
	"pdf-qa/internal/parser"
	"pdf-qa/internal/rag"
	"pdf-qa/internal/session"
	"pdf-qa/internal/web"
)

const (
	configFilePath  = "./configs/config.yaml"
	shutdownTimeout = 10 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the document file")
	query := flag.String("query", "", "Question to answer from the document")
	dryRun := flag.Bool("dry-run", false, "Parse and print chunks without calling any service")
	serve := flag.Bool("serve", false, "Run the web UI")
	flag.Parse()

	if *dryRun {
		if *filePath == "" {
			log.Fatal().Msg("Please provide a document file using the -file flag together with -dry-run")
		}
		previewChunks(*configPath, *filePath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, keeping debug")
	}

	newPipeline, err := pipelineFactory(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing services")
	}

	switch {
	case *serve || (*filePath == "" && *query == ""):
		if err := runServer(cfg, newPipeline); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	case *filePath != "" && *query != "":
		answerOnce(context.Background(), newPipeline(), *filePath, *query)
	default:
		log.Fatal().Msg("Please provide both a document file using the -file flag and a question using the -query flag, or run with -serve")
	}
}

// pipelineFactory builds the shared clients once; each session gets its own
// pipeline, and with it its own index.
func pipelineFactory(cfg *config.Config) (func() *rag.RAG, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	llm, err := llmservice.NewModel(&cfg.LLM)
	if err != nil {
		return nil, err
	}
	return func() *rag.RAG { return rag.NewRAG(embedder, llm, cfg) }, nil
}

// previewChunks splits with the chunking from configPath when that file
// exists; no credentials are needed.
func previewChunks(configPath, filePath string) {
	cfg := config.Default()
	if _, err := os.Stat(configPath); err == nil {
		if cfg, err = config.ReadConfig(configPath); err != nil {
			log.Fatal().Err(err).Msg("Error loading config")
		}
	}
	log.Debug().Int("chunk_size", cfg.RAG.ChunkSize).Int("chunk_overlap", cfg.RAG.ChunkOverlap).Msg("Chunking")

	chunks, err := parser.ParseDocument(filePath, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}
	log.Info().Int("chunks", len(chunks)).Msg("Parsed content")
	helper.PrettyPrint(chunks)
}

func answerOnce(ctx context.Context, pipeline *rag.RAG, filePath, query string) {
	n, err := pipeline.Process(ctx, filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error processing document")
	}
	log.Info().Msgf("Processed document into %d chunks", n)

	response, err := pipeline.Query(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

func runServer(cfg *config.Config, newPipeline func() *rag.RAG) error {
	if err := helper.CreateFolder(cfg.Server.UploadDir); err != nil {
		return err
	}

	sessions := session.NewManager(cfg.Server.SessionTTL, cfg.Server.UploadDir, newPipeline)
	defer sessions.Close()

	srv, err := web.NewServer(&cfg.Server, sessions, log.Logger)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Routes(),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server running")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errChan:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
