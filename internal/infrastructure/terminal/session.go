// Package terminal runs the interactive chat loop on a line-oriented
// reader/writer pair (normally stdin/stdout).
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/0xcro3dile/lecturerag/internal/config"
	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/logging"
)

// ErrInterrupted is returned by Run when the context is cancelled.
var ErrInterrupted = errors.New("interrupted by user")

// Engine answers one chat turn, streaming tokens to onToken.
type Engine interface {
	StreamChat(ctx context.Context, message string, onToken func(string)) (*entities.ChatResponse, error)
}

// Builder assembles a fresh engine with empty memory. With rebuild set the
// index is rebuilt from the documents first.
type Builder func(ctx context.Context, rebuild bool) (Engine, error)

// Info is what the banner and /models show.
type Info struct {
	Model           string
	EmbeddingModel  string
	DataDir         string
	LLMModels       []config.ModelEntry
	EmbeddingModels []config.ModelEntry
}

// Session is one interactive conversation.
type Session struct {
	in     io.Reader
	out    io.Writer
	info   Info
	build  Builder
	engine Engine
	st     styles
}

// NewSession creates a session around an already built engine.
func NewSession(in io.Reader, out io.Writer, info Info, engine Engine, build Builder) *Session {
	return &Session{
		in:     in,
		out:    out,
		info:   info,
		build:  build,
		engine: engine,
		st:     newStyles(out),
	}
}

// Run reads lines until /exit, end of input or cancellation. Cancellation
// returns ErrInterrupted after printing a termination message.
func (s *Session) Run(ctx context.Context) error {
	lines := readLines(ctx, s.in)
	s.printBanner()

	for {
		fmt.Fprint(s.out, "\n"+s.st.user.Render("Du: "))

		var line string
		select {
		case <-ctx.Done():
			return s.interrupted()
		case l, ok := <-lines:
			if !ok {
				s.printGoodbye()
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := s.dispatch(ctx, line)
			if err != nil {
				if ctx.Err() != nil {
					return s.interrupted()
				}
				s.printError(err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.ask(ctx, line); err != nil {
			if ctx.Err() != nil {
				return s.interrupted()
			}
			s.printError(err)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, cmd string) (quit bool, err error) {
	switch strings.ToLower(cmd) {
	case "/exit":
		s.printGoodbye()
		return true, nil
	case "/help":
		s.printHelp()
	case "/models":
		s.printModels()
	case "/clear":
		engine, err := s.build(ctx, false)
		if err != nil {
			return false, fmt.Errorf("resetting chat: %w", err)
		}
		s.engine = engine
		fmt.Fprintln(s.out, s.st.ok.Render("✓ Chat-Verlauf gelöscht"))
	case "/rebuild":
		fmt.Fprintln(s.out, s.st.dim.Render("Erstelle Index neu..."))
		engine, err := s.build(ctx, true)
		if err != nil {
			return false, fmt.Errorf("rebuilding index: %w", err)
		}
		s.engine = engine
		fmt.Fprintln(s.out, s.st.ok.Render("✓ Index wurde neu erstellt"))
	default:
		fmt.Fprintf(s.out, "Unbekannter Befehl %s. /help zeigt alle Befehle.\n", cmd)
	}
	return false, nil
}

func (s *Session) ask(ctx context.Context, question string) error {
	fmt.Fprint(s.out, "\n"+s.st.assistant.Render("Assistent: "))
	resp, err := s.engine.StreamChat(ctx, question, func(tok string) {
		fmt.Fprint(s.out, tok)
	})
	fmt.Fprintln(s.out)
	if err != nil {
		return err
	}
	if src := sourceNames(resp.Sources); src != "" {
		fmt.Fprintln(s.out, s.st.dim.Render("Quellen: "+src))
	}
	return nil
}

func (s *Session) interrupted() error {
	fmt.Fprintln(s.out, "\n\n"+s.st.warn.Render("Abbruch durch Benutzer"))
	return ErrInterrupted
}

func (s *Session) printError(err error) {
	logging.Debugf("turn failed: %v", err)
	fmt.Fprintln(s.out, s.st.err.Render("Fehler: "+err.Error()))
	fmt.Fprintln(s.out, "Versuche es erneut oder beende mit /exit")
}

func (s *Session) printGoodbye() {
	fmt.Fprintln(s.out, "\nAuf Wiedersehen!")
}

// sourceNames lists distinct source documents in retrieval order.
func sourceNames(results []entities.QueryResult) string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range results {
		if r.SourceDoc == "" || seen[r.SourceDoc] {
			continue
		}
		seen[r.SourceDoc] = true
		names = append(names, r.SourceDoc)
	}
	return strings.Join(names, ", ")
}

// readLines feeds input lines into a channel so they can be selected
// against ctx. The channel is closed at end of input.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			logging.Warnf("reading input: %v", err)
		}
	}()
	return ch
}
