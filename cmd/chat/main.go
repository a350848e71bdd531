// Command chat answers questions about the converted lecture notes in an
// interactive terminal session backed by a local model server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/0xcro3dile/lecturerag/internal/adapters/embedding"
	"github.com/0xcro3dile/lecturerag/internal/adapters/llm"
	"github.com/0xcro3dile/lecturerag/internal/adapters/loader"
	"github.com/0xcro3dile/lecturerag/internal/adapters/openaicompat"
	"github.com/0xcro3dile/lecturerag/internal/adapters/vectordb"
	"github.com/0xcro3dile/lecturerag/internal/config"
	"github.com/0xcro3dile/lecturerag/internal/domain/ports"
	"github.com/0xcro3dile/lecturerag/internal/domain/usecases"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/logging"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/terminal"
)

// backend is what the chat needs from a model server: chat plus the
// single-prompt completion used for the startup check.
type backend interface {
	ports.LLMService
	ports.Completer
}

func main() {
	_ = godotenv.Load()

	model := flag.String("model", "", "LLM model to use (overrides config)")
	rebuild := flag.Bool("rebuild", false, "rebuild the index from the documents")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, *model, *rebuild, os.Stdin, os.Stdout)
	switch {
	case err == nil, errors.Is(err, terminal.ErrInterrupted):
	case errors.Is(err, context.Canceled):
		fmt.Println("\nAbbruch durch Benutzer")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "\nFehler: %v\n", err)
		os.Exit(1)
	}
}

// run assembles the chat from configuration and serves the session on
// in/out until it ends.
func run(ctx context.Context, model string, rebuild bool, in io.Reader, out io.Writer) error {
	cfg, cfgPath, err := config.LoadDefault()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if model != "" {
		cfg.LLMModel = model
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if info, err := os.Stat(cfg.DataDir); err != nil || !info.IsDir() {
		return fmt.Errorf("data directory %q does not exist", cfg.DataDir)
	}
	level, err := logging.ParseLevel(cfg.Advanced.LogLevel)
	if err != nil {
		logging.Warnf("%v, using INFO", err)
	}
	logging.SetLevel(level)
	if cfgPath != "" {
		logging.Debugf("config loaded from %s", cfgPath)
	}

	info := terminal.Info{
		Model:           cfg.LLMModel,
		EmbeddingModel:  cfg.EmbeddingModel,
		DataDir:         cfg.DataDir,
		LLMModels:       cfg.LLMModels,
		EmbeddingModels: cfg.EmbeddingModels,
	}

	chat, embedder := newBackend(cfg)

	fmt.Fprintf(out, "Verbinde mit %s (Modell %s)...\n", cfg.BaseURL(), cfg.LLMModel)
	if _, err := chat.Complete(ctx, "Test"); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintf(out, "\nModell-Server nicht erreichbar: %v\n", err)
		fmt.Fprintln(out, "Stelle sicher, dass:")
		fmt.Fprintln(out, "  1. der Server läuft (ollama serve)")
		fmt.Fprintf(out, "  2. das Modell installiert ist (ollama pull %s)\n", cfg.LLMModel)
		terminal.ShowModels(out, info)
		return errors.New("model server unreachable")
	}
	fmt.Fprintln(out, "✓ Verbindung hergestellt")

	indexer := usecases.NewIndexUseCase(
		loader.NewMarkdownLoader(),
		embedder,
		vectordb.NewSQLiteRepository(),
		usecases.IndexConfig{
			DataDir:      cfg.DataDir,
			IndexDir:     cfg.IndexDir,
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		},
	)

	fmt.Fprintln(out, "Lade Index...")
	index, manifest, err := indexer.BuildIndex(ctx, rebuild)
	if err != nil {
		return err
	}
	defer func() { index.Close() }()
	fmt.Fprintf(out, "✓ Index bereit (%d Chunks aus %d Dokumenten)\n", manifest.ChunkCount, manifest.DocumentCount)

	newEngine := func() terminal.Engine {
		memory := usecases.NewChatMemory(cfg.Advanced.UseAdvancedMemory, chat, cfg.MemoryTokenLimit, cfg.Advanced.MaxFacts)
		return usecases.NewChatEngine(embedder, index, chat, memory, cfg.SystemPrompt, cfg.Advanced.SimilarityTopK)
	}

	build := func(ctx context.Context, force bool) (terminal.Engine, error) {
		if force {
			fresh, _, err := indexer.BuildIndex(ctx, true)
			if err != nil {
				return nil, err
			}
			index.Close()
			index = fresh
		}
		return newEngine(), nil
	}

	return terminal.NewSession(in, out, info, newEngine(), build).Run(ctx)
}

func newBackend(cfg *config.Config) (backend, ports.EmbeddingService) {
	if cfg.Provider == config.ProviderOpenAI {
		opts := openaicompat.Options{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Timeout:   cfg.Timeout(),
		}
		chatOpts, embedOpts := opts, opts
		chatOpts.Model = cfg.LLMModel
		embedOpts.Model = cfg.EmbeddingModel
		return openaicompat.NewChatAdapter(chatOpts, cfg.Temperature), openaicompat.NewEmbeddingAdapter(embedOpts)
	}

	base := cfg.Advanced.OllamaBaseURL
	return llm.NewOllamaLLMAdapter(base, cfg.LLMModel, cfg.Temperature, cfg.Timeout()),
		embedding.NewOllamaAdapter(base, cfg.EmbeddingModel, cfg.Timeout())
}
