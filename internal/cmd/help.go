package cmd

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
)

const exampleConfig = `inputs:
  - case.3mf
  - inserts.3mf
output: combined.3mf
unit: millimeter
scale: 1.0
precision: 4
`

// renderRepackHelp renders the help text for the repack command with lipgloss styling
func renderRepackHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginTop(1)

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("10"))

	commandStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("14"))

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Examples"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Combine several 3MF files into one"))
	b.WriteString("\n")
	b.WriteString("  " + commandStyle.Render("scene3mf repack case.3mf inserts.3mf -o combined.3mf"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Rescale a file, writing coordinates with 2 decimals"))
	b.WriteString("\n")
	b.WriteString("  " + commandStyle.Render("scene3mf repack part.3mf --scale 25.4 --precision 2 -o scaled.3mf"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("YAML config mode"))
	b.WriteString("\n")
	b.WriteString("  " + commandStyle.Render("scene3mf repack -f job.yaml"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Example job.yaml"))
	b.WriteString("\n")
	for _, line := range strings.Split(highlightYAML(exampleConfig), "\n") {
		b.WriteString("  " + line + "\n")
	}

	return b.String()
}

// highlightYAML renders YAML source with terminal colors. On any highlighting
// problem the plain source is returned instead.
func highlightYAML(source string) string {
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, source, "yaml", "terminal256", "monokai"); err != nil {
		return source
	}
	return strings.TrimRight(buf.String(), "\n")
}
