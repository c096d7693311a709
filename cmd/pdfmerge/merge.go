package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/local/pdfmerge/internal/merger"
	"github.com/local/pdfmerge/internal/storage"
)

var mergeCmd = &cobra.Command{
	Use:   "merge [flags] SOURCE[:PAGES]...",
	Short: "Merge pages from PDF sources into one document",
	Long: `Merge adds each SOURCE in order and writes every selected page to one output
document. PAGES is "all" (the default) or a comma separated list of pages and
ascending ranges, e.g. 1,3,5-7. Pages may repeat.

Without --output the document is written to stdout. An s3://bucket/key output
uploads the result. Downloaded sources are removed after the merge unless
--keep is given.`,
	RunE: runMerge,
}

func init() {
	f := mergeCmd.Flags()
	f.StringP("output", "o", "", "output path or s3://bucket/key (default stdout)")
	f.String("mode", "", "output mode: file, download, browser, string (default file with --output, else browser)")
	f.Bool("keep", false, "keep downloaded temp sources after the merge")
	f.String("manifest", "", "YAML manifest with output, mode and sources")
	f.Bool("progress", false, "show a progress bar on stderr")

	_ = viper.BindPFlag("keep", f.Lookup("keep"))
	_ = viper.BindPFlag("progress", f.Lookup("progress"))

	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
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

	output, _ := cmd.Flags().GetString("output")
	modeFlag, _ := cmd.Flags().GetString("mode")
	cleanup := !viper.GetBool("keep")
	if m != nil {
		if output == "" {
			output = m.Output
		}
		if modeFlag == "" {
			modeFlag = m.Mode
		}
		if m.Cleanup != nil && !cmd.Flags().Changed("keep") {
			cleanup = *m.Cleanup
		}
	}

	mode := merger.ParseMode(modeFlag)
	if modeFlag == "" && output != "" {
		mode = merger.ModeFile
	}
	upload := storage.IsURL(output)
	if upload {
		mode = merger.ModeString
	}

	var progress func(done, total int)
	finish := func() {}
	if viper.GetBool("progress") {
		progress, finish = progressBar()
	}

	p, err := newPlanner(cmd, specs, cleanup, progress)
	if err != nil {
		return err
	}
	if !cleanup {
		defer func() {
			for _, f := range p.TempFiles() {
				fmt.Fprintln(os.Stderr, "kept temp source:", f)
			}
		}()
	}

	out := merger.Output{Mode: mode, Target: output, Writer: cmd.OutOrStdout()}
	data, err := p.Merge(cmd.Context(), out)
	finish()
	if err != nil {
		if cleanup {
			removeTemps(p)
		}
		return err
	}

	switch {
	case upload:
		bucket, key, err := storage.ParseURL(output)
		if err != nil {
			return err
		}
		c, err := s3Client(cmd.Context())
		if err != nil {
			return err
		}
		if err := c.Upload(cmd.Context(), bucket, key, bytes.NewReader(data)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "uploaded %d bytes to %s\n", len(data), output)
	case mode == merger.ModeString:
		_, err := cmd.OutOrStdout().Write(data)
		return err
	case mode == merger.ModeFile:
		fmt.Fprintf(os.Stderr, "wrote %s\n", output)
	}
	return nil
}
