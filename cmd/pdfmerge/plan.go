package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/local/pdfmerge/internal/pagerange"
)

var planCmd = &cobra.Command{
	Use:   "plan [flags] SOURCE[:PAGES]...",
	Short: "Print the output page order without writing a document",
	RunE:  runPlan,
}

var pagesCmd = &cobra.Command{
	Use:   "pages SELECTOR",
	Short: "Expand a page selector, e.g. 1,3,5-7",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pagerange.IsAll(args[0]) {
			fmt.Fprintln(cmd.OutOrStdout(), pagerange.All)
			return nil
		}
		pages, err := pagerange.ParseLimit(args[0], viper.GetInt("max-pages"))
		if err != nil {
			return err
		}
		for _, n := range pages {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

func init() {
	planCmd.Flags().String("manifest", "", "YAML manifest with sources")
	planCmd.Flags().Bool("yaml", false, "print the plan as YAML")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(pagesCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	var m *Manifest
	if path, _ := cmd.Flags().GetString("manifest"); path != "" {
		loaded, err := LoadManifest(path)
		if err != nil {
			return err
		}
		m = loaded
	}
	specs, err := collectSpecs(args, m)
	if err != nil {
		return err
	}

	p, err := newPlanner(cmd, specs, true, nil)
	if err != nil {
		return err
	}
	plan, err := p.Plan(cmd.Context())
	// Plan does not consume sources; drop any downloads it made.
	removeTemps(p)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(map[string]any{"pages": len(plan), "steps": plan})
	}
	for i, s := range plan {
		fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, s.Source, s.Page)
	}
	return nil
}
