package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quick-analysis/backend/internal/config"
	"github.com/quick-analysis/backend/internal/flow"
	"github.com/quick-analysis/backend/internal/logger"
	"github.com/quick-analysis/backend/internal/staging"
	"github.com/quick-analysis/backend/internal/ui"
)

// sampleCandidates are staged when demo runs without file arguments.
var sampleCandidates = []staging.Candidate{
	{Name: "chest.png", Size: 1048576, ContentType: "image/png"},
	{Name: "notes.txt", Size: 2048, ContentType: "text/plain"},
}

func newDemoCommand() *cobra.Command {
	var (
		locale string
		dark   bool
	)

	cmd := &cobra.Command{
		Use:   "demo [files...]",
		Short: "Drive one analysis flow in the terminal",
		Long: `demo runs a single flow in the terminal. The given files (or a built-in
sample set) are staged when 'a' is pressed; nothing is uploaded anywhere.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if cfgFile != "" {
				loaded, _, err := loadConfig()
				if err != nil {
					return err
				}
				cfg = loaded
			}

			candidates, err := candidatesFromPaths(args)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				candidates = sampleCandidates
			}

			// The alternate screen owns the terminal.
			logger.SetOutput(io.Discard)

			if locale == "" {
				locale = cfg.Analysis.DefaultLocale
			}
			f := flow.New(flow.Options{
				ID:             "demo",
				Analysis:       cfg.AnalysisTimeline(),
				Rules:          cfg.StagingRules(),
				ResetPolicy:    cfg.ResetPolicy(),
				AllowStartOver: true,
				Locale:         locale,
				DarkMode:       dark,
			})
			defer f.Close()

			return ui.Run(ui.NewModel(f, nil, candidates))
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "display language (Eng, 한, 日, 中 or a language tag)")
	cmd.Flags().BoolVar(&dark, "dark", false, "start in dark mode")
	return cmd
}

// candidatesFromPaths stats each path; only the name and size take part in
// validation.
func candidatesFromPaths(paths []string) ([]staging.Candidate, error) {
	out := make([]staging.Candidate, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		out = append(out, staging.Candidate{Name: filepath.Base(p), Size: info.Size()})
	}
	return out, nil
}
