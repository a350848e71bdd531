// Command convert turns the lecture PDFs in the input directory into
// Markdown files (plus extracted images) in the output directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/0xcro3dile/lecturerag/internal/adapters/artifacts"
	"github.com/0xcro3dile/lecturerag/internal/adapters/converter"
	"github.com/0xcro3dile/lecturerag/internal/adapters/filewatcher"
	"github.com/0xcro3dile/lecturerag/internal/config"
	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/domain/ports"
	"github.com/0xcro3dile/lecturerag/internal/domain/usecases"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/logging"
)

func main() {
	_ = godotenv.Load()

	watch := flag.Bool("watch", false, "keep watching the input directory after the batch")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *watch); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\nAbbruch durch Benutzer")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Fehler: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, watch bool) error {
	cfg, cfgPath, err := config.LoadDefault()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Advanced.LogLevel)
	if err != nil {
		logging.Warnf("%v, using INFO", err)
	}
	logging.SetLevel(level)
	if cfgPath != "" {
		logging.Debugf("config loaded from %s", cfgPath)
	}

	in, out := cfg.Convert.InputDir, cfg.Convert.OutputDir
	fmt.Println("PDF zu Markdown Konverter gestartet")
	fmt.Printf("Eingabeordner: %s\n", in)
	fmt.Printf("Ausgabeordner: %s\n", out)

	if info, err := os.Stat(in); err != nil || !info.IsDir() {
		return fmt.Errorf("input directory %q does not exist", in)
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	jobs, err := usecases.Discover(in)
	if err != nil {
		return err
	}
	if len(jobs) == 0 && !watch {
		fmt.Println("Keine PDF-Dateien im Eingabeordner gefunden!")
		return nil
	}
	fmt.Printf("\nGefundene PDFs: %d\n", len(jobs))
	for _, j := range jobs {
		fmt.Printf("   - %s\n", filepath.Base(j.InputPath))
	}

	conv, cleanup, err := newConverter(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	uc := usecases.NewConvertUseCase(conv, artifacts.NewFSWriter(), out, os.Stdout)

	fmt.Println("\nLade Konvertierungs-Engine...")
	if err := uc.Warmup(ctx); err != nil {
		return err
	}
	fmt.Println("   Engine bereit")

	if len(jobs) > 0 {
		fmt.Println("\nStarte Konvertierung...")
		report, err := uc.ConvertAll(ctx, jobs)
		printSummary(report, out)
		if err != nil {
			return err
		}
	}

	if !watch {
		return nil
	}
	w, err := filewatcher.NewFSNotifyWatcher([]string{".pdf"})
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	return watchDir(ctx, uc, w, in)
}

func newConverter(ctx context.Context, cfg *config.Config) (ports.DocumentConverter, func(), error) {
	noop := func() {}
	switch cfg.Convert.Engine {
	case config.EnginePDFText:
		return converter.NewPDFTextConverter(), noop, nil
	default:
		mc := converter.NewMarkerConverter(cfg.Convert.ServiceURL, cfg.ConvertTimeout())
		if cfg.Convert.ServiceScript == "" {
			return mc, noop, nil
		}
		cleanup, err := mc.StartService(ctx, cfg.Convert.ServiceScript)
		if err != nil {
			return nil, nil, err
		}
		return mc, cleanup, nil
	}
}

func watchDir(ctx context.Context, uc *usecases.ConvertUseCase, w ports.FileWatcher, dir string) error {
	defer w.Stop()

	events, err := w.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	fmt.Printf("\nBeobachte %s auf neue PDFs (Strg+C beendet)...\n", dir)
	if err := uc.Watch(ctx, events); err != nil {
		return err
	}
	fmt.Println("\nBeobachtung beendet")
	return nil
}

func printSummary(r entities.BatchReport, out string) {
	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("ZUSAMMENFASSUNG")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Erfolgreich konvertiert: %d\n", r.Succeeded)
	fmt.Printf("Fehler: %d\n", r.Failed)
	if len(r.Errors) > 0 {
		fmt.Println("\nFehlerdetails:")
		for _, e := range r.Errors {
			fmt.Printf("   - %s\n", e)
		}
	}
	fmt.Printf("\nMarkdown-Dateien befinden sich in: %s\n", out)
}
