package presenter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quick-analysis/backend/internal/models"
)

// Palette holds the colors of one terminal theme.
type Palette struct {
	Name       string
	Primary    lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color
	Foreground lipgloss.Color
}

// buildPalette picks the light or dark half of each color pair.
func buildPalette(name string, dark bool, primary, muted, success, warning, errorColor, border, foreground [2]string) Palette {
	i := 0
	if dark {
		i = 1
	}
	return Palette{
		Name:       name,
		Primary:    lipgloss.Color(primary[i]),
		Muted:      lipgloss.Color(muted[i]),
		Success:    lipgloss.Color(success[i]),
		Warning:    lipgloss.Color(warning[i]),
		Error:      lipgloss.Color(errorColor[i]),
		Border:     lipgloss.Color(border[i]),
		Foreground: lipgloss.Color(foreground[i]),
	}
}

// PaletteFor returns the palette matching a view theme.
func PaletteFor(theme string) Palette {
	dark := theme == ThemeDark
	return buildPalette(theme, dark,
		[2]string{"#1E40AF", "#3B82F6"}, [2]string{"#6B7280", "#9CA3AF"}, [2]string{"#059669", "#10B981"},
		[2]string{"#D97706", "#F59E0B"}, [2]string{"#DC2626", "#EF4444"}, [2]string{"#D1D5DB", "#374151"},
		[2]string{"#111827", "#F9FAFB"})
}

// Terminal renders a view as styled text for a terminal of the given width.
func Terminal(v models.View, width int) string {
	p := PaletteFor(v.Theme)

	title := lipgloss.NewStyle().Bold(true).Foreground(p.Primary)
	muted := lipgloss.NewStyle().Foreground(p.Muted)
	text := lipgloss.NewStyle().Foreground(p.Foreground)
	errStyle := lipgloss.NewStyle().Foreground(p.Error).Bold(true)
	notice := lipgloss.NewStyle().Foreground(p.Warning)

	var b strings.Builder
	b.WriteString(title.Render(v.Title))
	b.WriteString("  ")
	b.WriteString(muted.Render(fmt.Sprintf("%s %s", v.Flag, v.Locale)))
	if len(v.Languages) > 0 {
		opts := make([]string, len(v.Languages))
		for i, l := range v.Languages {
			opts[i] = l.Flag + " " + l.Key
		}
		b.WriteString(muted.Render("  | " + strings.Join(opts, "  ")))
	}
	b.WriteString("\n\n")

	switch v.Screen {
	case models.ScreenUpload:
		b.WriteString(text.Render(v.UploadText))
		b.WriteString("\n")
		b.WriteString(muted.Render(fmt.Sprintf("%s (%s)", v.DropHint, v.Accept)))
		b.WriteString("\n")
		writeFiles(&b, v.Files, text, muted)
		b.WriteString("\n")
		b.WriteString(button(v.SubmitLabel, v.SubmitEnabled, p))
	case models.ScreenPending:
		writeFiles(&b, v.Files, muted, muted)
		b.WriteString("\n")
		b.WriteString(button(v.SubmitLabel, false, p))
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Foreground(p.Primary).Italic(true).Render(v.StatusMessage))
	case models.ScreenResult:
		if v.Result != nil {
			card := lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(p.Border).
				Padding(0, 1)
			if width > 4 {
				card = card.Width(width - 4)
			}
			body := strings.Join([]string{
				lipgloss.NewStyle().Bold(true).Foreground(p.Error).Render(v.Result.Title),
				lipgloss.NewStyle().Foreground(p.Success).Render(v.Result.ConfidenceLabel),
				text.Render(v.Result.Recommendation),
				muted.Render("[" + strings.Join(v.Result.Actions, "] [") + "]"),
			}, "\n")
			b.WriteString(card.Render(body))
		}
	case models.ScreenFailed:
		b.WriteString(errStyle.Render(v.FailureReason))
	}

	if v.Error != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(v.Error))
	}
	if v.Notice != "" {
		b.WriteString("\n")
		b.WriteString(notice.Render(v.Notice))
	}
	b.WriteString("\n")
	return b.String()
}

func writeFiles(b *strings.Builder, rows []models.FileRow, name, size lipgloss.Style) {
	for _, r := range rows {
		fmt.Fprintf(b, "\n  %d. %s %s", r.Index+1, name.Render(r.Name), size.Render(SizeLabel(r.SizeBytes)))
	}
	if len(rows) > 0 {
		b.WriteString("\n")
	}
}

func button(label string, enabled bool, p Palette) string {
	s := lipgloss.NewStyle().Padding(0, 2).Bold(true)
	if enabled {
		s = s.Background(p.Primary).Foreground(lipgloss.Color("#FFFFFF"))
	} else {
		s = s.Background(p.Border).Foreground(p.Muted)
	}
	return s.Render(label)
}
