package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	analyzeURLs  []string
	analyzeFile  string
	analyzeOwner string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one or more target websites",
	Long:  "Runs the full analysis for each target URL: content acquisition, entity and topical map extraction, optional SERP enrichment, and a cross-target comparison when two or more targets succeed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := collectTargets()
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return eris.New("no targets: pass --url or --file")
		}

		ctx := cmd.Context()
		env, err := initAnalysis(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		analysis, err := env.Store.CreateAnalysis(ctx, analyzeOwner, targets)
		if err != nil {
			return eris.Wrap(err, "create analysis")
		}
		zap.L().Info("analysis created",
			zap.String("analysis_id", analysis.ID),
			zap.Int("targets", len(targets)),
		)

		result, err := env.Orchestrator.Run(ctx, analysis.ID, targets)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// collectTargets merges --url flags with the optional --file target list.
func collectTargets() ([]string, error) {
	targets := append([]string{}, analyzeURLs...)

	if analyzeFile != "" {
		data, err := os.ReadFile(analyzeFile)
		if err != nil {
			return nil, eris.Wrapf(err, "read targets file %s", analyzeFile)
		}
		var fromFile struct {
			Targets []string `yaml:"targets"`
		}
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, eris.Wrapf(err, "parse targets file %s", analyzeFile)
		}
		targets = append(targets, fromFile.Targets...)
	}

	seen := make(map[string]struct{}, len(targets))
	unique := targets[:0]
	for _, t := range targets {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	if len(unique) > 10 {
		return nil, fmt.Errorf("too many targets: %d (max 10)", len(unique))
	}
	return unique, nil
}

func init() {
	analyzeCmd.Flags().StringArrayVar(&analyzeURLs, "url", nil, "target URL (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "yaml file with a targets: list")
	analyzeCmd.Flags().StringVar(&analyzeOwner, "owner", "cli", "owner recorded on the analysis")
	rootCmd.AddCommand(analyzeCmd)
}
