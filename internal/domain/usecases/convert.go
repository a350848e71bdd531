package usecases

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/domain/ports"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/logging"
)

// Discover lists the PDFs directly inside inputDir (extension matched
// case-insensitively), sorted by path.
func Discover(inputDir string) ([]entities.ConversionJob, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	seen := make(map[string]bool)
	var jobs []entities.ConversionJob
	for _, e := range entries {
		if !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(inputDir, e.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || seen[path] {
			continue
		}
		seen[path] = true
		jobs = append(jobs, entities.NewConversionJob(path))
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].InputPath < jobs[j].InputPath })
	return jobs, nil
}

// ConvertUseCase runs PDFs through the conversion engine and writes the
// artifacts. Progress lines go to out.
type ConvertUseCase struct {
	converter ports.DocumentConverter
	writer    ports.ArtifactWriter
	outputDir string
	out       io.Writer
	settle    time.Duration
}

// NewConvertUseCase creates a ConvertUseCase with injected dependencies.
func NewConvertUseCase(converter ports.DocumentConverter, writer ports.ArtifactWriter, outputDir string, out io.Writer) *ConvertUseCase {
	if out == nil {
		out = io.Discard
	}
	return &ConvertUseCase{
		converter: converter,
		writer:    writer,
		outputDir: outputDir,
		out:       out,
		settle:    time.Second,
	}
}

// Warmup loads the engine once before any document.
func (uc *ConvertUseCase) Warmup(ctx context.Context) error {
	if err := uc.converter.Warmup(ctx); err != nil {
		return fmt.Errorf("loading conversion engine: %w", err)
	}
	return nil
}

// ConvertOne converts a single job and returns the Markdown path.
func (uc *ConvertUseCase) ConvertOne(ctx context.Context, job entities.ConversionJob) (string, error) {
	rendered, err := uc.converter.Convert(ctx, job.InputPath)
	if err != nil {
		return "", err
	}
	return uc.writer.Write(uc.outputDir, job, rendered)
}

// ConvertAll converts jobs sequentially. Per-file failures are counted and
// skipped. Cancellation stops before the next file and returns the partial
// report with ctx.Err().
func (uc *ConvertUseCase) ConvertAll(ctx context.Context, jobs []entities.ConversionJob) (entities.BatchReport, error) {
	var report entities.BatchReport
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		fmt.Fprintf(uc.out, "[%d/%d] %s\n", i+1, len(jobs), filepath.Base(job.InputPath))
		path, err := uc.ConvertOne(ctx, job)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", filepath.Base(job.InputPath), err))
			logging.Errorf("converting %s: %v", job.InputPath, err)
			fmt.Fprintf(uc.out, "  Fehler: %v\n", err)
			continue
		}
		report.Succeeded++
		fmt.Fprintf(uc.out, "  gespeichert: %s\n", path)
	}
	return report, nil
}

// Watch converts PDFs reported by events once they have been quiet for the
// settle period, so files still being copied are not picked up half
// written. It returns when ctx is done or events is closed.
func (uc *ConvertUseCase) Watch(ctx context.Context, events <-chan ports.FileEvent) error {
	pending := make(map[string]time.Time)
	tick := time.NewTicker(uc.settle / 4)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Operation {
			case ports.FileCreated, ports.FileModified:
				pending[ev.Path] = time.Now()
			case ports.FileDeleted:
				delete(pending, ev.Path)
			}
		case now := <-tick.C:
			var ready []string
			for path, last := range pending {
				if now.Sub(last) >= uc.settle {
					ready = append(ready, path)
				}
			}
			sort.Strings(ready)
			for _, path := range ready {
				delete(pending, path)
				if ctx.Err() != nil {
					return nil
				}
				job := entities.NewConversionJob(path)
				fmt.Fprintf(uc.out, "neue Datei: %s\n", filepath.Base(path))
				out, err := uc.ConvertOne(ctx, job)
				if err != nil {
					logging.Errorf("converting %s: %v", path, err)
					fmt.Fprintf(uc.out, "  Fehler: %v\n", err)
					continue
				}
				fmt.Fprintf(uc.out, "  gespeichert: %s\n", out)
			}
		}
	}
}
