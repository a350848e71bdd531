package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/0xcro3dile/lecturerag/internal/config"
)

type styles struct {
	title     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	ok        lipgloss.Style
	warn      lipgloss.Style
	err       lipgloss.Style
	dim       lipgloss.Style
	active    lipgloss.Style
	box       lipgloss.Style
}

// newStyles binds the styles to out so colour is only emitted on a terminal.
func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		title:     r.NewStyle().Bold(true),
		user:      r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		assistant: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		ok:        r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:      r.NewStyle().Foreground(lipgloss.Color("11")),
		err:       r.NewStyle().Foreground(lipgloss.Color("9")),
		dim:       r.NewStyle().Foreground(lipgloss.Color("8")),
		active:    r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		box:       r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

const commandList = `  /help    - Zeige diese Hilfe
  /clear   - Lösche Chat-Verlauf
  /rebuild - Erstelle Index neu
  /models  - Zeige verfügbare Modelle
  /exit    - Beende das Programm`

func (s *Session) printBanner() {
	var b strings.Builder
	b.WriteString(s.st.title.Render("RAG CHAT - Vorlesungsunterlagen Assistent"))
	fmt.Fprintf(&b, "\nModell: %s", s.info.Model)
	fmt.Fprintf(&b, "\nDatenquelle: %s", s.info.DataDir)
	b.WriteString("\n\nBefehle:\n")
	b.WriteString(commandList)
	b.WriteString("\n\nStelle deine Fragen zu den Vorlesungsunterlagen!")
	fmt.Fprintln(s.out, s.st.box.Render(b.String()))
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.out, "\n"+s.st.title.Render("HILFE"))
	fmt.Fprintln(s.out, `Dieses System nutzt RAG (Retrieval-Augmented Generation),
um Fragen zu den Vorlesungsunterlagen zu beantworten.

Tipps für bessere Antworten:
- Stelle spezifische Fragen
- Nenne Themen oder Kapitel, wenn bekannt
- Frage nach Erklärungen oder Beispielen

Befehle:`)
	fmt.Fprintln(s.out, commandList)
}

func (s *Session) printModels() {
	fmt.Fprintln(s.out, "\n"+s.st.title.Render("VERFÜGBARE MODELLE"))
	fmt.Fprintf(s.out, "Aktuelles LLM: %s\n", s.info.Model)
	fmt.Fprintf(s.out, "Aktuelles Embedding: %s\n", s.info.EmbeddingModel)
	fmt.Fprintln(s.out, "\nLLM-Modelle:")
	s.printCatalog(s.info.LLMModels, s.info.Model)
	fmt.Fprintln(s.out, "\nEmbedding-Modelle:")
	s.printCatalog(s.info.EmbeddingModels, s.info.EmbeddingModel)
	fmt.Fprintln(s.out, s.st.dim.Render("\nModell wechseln: --model <name> beim Start oder llm_model in rag_config.yaml"))
}

func (s *Session) printCatalog(entries []config.ModelEntry, current string) {
	keyWidth, modelWidth := 0, 0
	for _, e := range entries {
		keyWidth = max(keyWidth, len(e.Key))
		modelWidth = max(modelWidth, len(e.Model))
	}
	for _, e := range entries {
		line := fmt.Sprintf("  %-*s  %-*s  %s", keyWidth, e.Key, modelWidth, e.Model, e.Description)
		if e.Size != "" {
			line += " (Größe: " + e.Size + ")"
		}
		if e.Model == current {
			line += " " + s.st.active.Render("(AKTIV)")
		}
		fmt.Fprintln(s.out, line)
	}
}

// ShowModels prints the model catalog outside a session, e.g. when the
// model server could not be reached at startup.
func ShowModels(out io.Writer, info Info) {
	s := &Session{out: out, info: info, st: newStyles(out)}
	s.printModels()
}
