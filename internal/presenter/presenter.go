// Package presenter turns a flow snapshot into the view a client displays.
package presenter

import (
	"fmt"

	"github.com/quick-analysis/backend/internal/i18n"
	"github.com/quick-analysis/backend/internal/models"
	"github.com/quick-analysis/backend/internal/staging"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Render builds the view for snap. It has no side effects.
func Render(snap models.FlowSnapshot, catalog *i18n.Catalog, rules staging.Rules) models.View {
	locale := catalog.Resolve(snap.Locale)
	s := locale.Strings

	v := models.View{
		SessionID:     snap.ID,
		Title:         s.Title,
		Locale:        locale.Key,
		Flag:          locale.Flag,
		Languages:     languages(catalog, locale.Key),
		Theme:         Theme(snap.DarkMode),
		SubmitLabel:   s.StartAnalysis,
		SubmitEnabled: snap.CanSubmit,
		Error:         snap.Error,
		Notice:        snap.Notice,
		CanStartOver:  snap.CanReset,
		Version:       snap.Version,
	}

	switch snap.State.Phase {
	case models.PhasePending:
		v.Screen = models.ScreenPending
		v.SubmitLabel = s.Uploading
		v.SubmitEnabled = false
		v.StatusMessage = catalog.WaitingMessage(snap.State.MessageIndex)
		v.Files = fileRows(snap.Files)
	case models.PhaseComplete:
		v.Screen = models.ScreenResult
		if r := snap.State.Result; r != nil {
			v.Result = &models.ResultCard{
				Title:             r.Title,
				ConfidencePercent: r.ConfidencePercent,
				ConfidenceLabel:   ConfidenceLabel(s.Confidence, r.ConfidencePercent),
				Recommendation:    r.Recommendation,
				Actions:           []string{models.ActionDownloadReport, models.ActionShareResult},
			}
		}
	case models.PhaseFailed:
		v.Screen = models.ScreenFailed
		v.FailureReason = snap.State.Reason
	default:
		v.Screen = models.ScreenUpload
		v.UploadText = s.UploadText
		v.DropHint = s.DropHint
		v.Accept = rules.Accept()
		v.Files = fileRows(snap.Files)
	}
	return v
}

// Theme maps the dark mode flag to a theme name.
func Theme(dark bool) string {
	if dark {
		return ThemeDark
	}
	return ThemeLight
}

// SizeLabel formats a byte count as "(x.xx MB)".
func SizeLabel(sizeBytes int64) string {
	return fmt.Sprintf("(%.2f MB)", float64(sizeBytes)/1024/1024)
}

// ConfidenceLabel formats "Confidence: 85%" with a localized label.
func ConfidenceLabel(label string, percent int) string {
	return fmt.Sprintf("%s: %d%%", label, percent)
}

func fileRows(files []models.StagedFile) []models.FileRow {
	if len(files) == 0 {
		return nil
	}
	rows := make([]models.FileRow, len(files))
	for i, f := range files {
		rows[i] = models.FileRow{
			Index:     i,
			Name:      f.Name,
			SizeBytes: f.SizeBytes,
			Label:     f.Name + " " + SizeLabel(f.SizeBytes),
		}
	}
	return rows
}

func languages(catalog *i18n.Catalog, current string) []models.LanguageOption {
	others := catalog.Others(current)
	out := make([]models.LanguageOption, len(others))
	for i, l := range others {
		out[i] = models.LanguageOption{Key: l.Key, Code: l.Code, Flag: l.Flag}
	}
	return out
}
