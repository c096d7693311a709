// Package main is the pdfmerge command line: merge selected pages of PDF
// files, URLs and S3 objects into one document.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	logpkg "github.com/local/pdfmerge/internal/logger"
	"github.com/local/pdfmerge/internal/pagerange"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pdfmerge",
	Short: "Merge pages from several PDF documents into one",
	Long: `pdfmerge concatenates selected pages of PDF documents, in the order given,
into a single output document. Sources are local paths, file://, http(s)://
or s3:// locators, each optionally followed by a page selector:

  pdfmerge merge -o out.pdf cover.pdf report.pdf:2,5-7 s3://bucket/appendix.pdf:all`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logpkg.Init(logpkg.Options{
			Level:   viper.GetString("log-level"),
			Pretty:  true,
			Console: os.Stderr,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logpkg.Close()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pdfmerge.yaml or ~/.config/pdfmerge/config.yaml)")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	pf.String("temp-dir", os.TempDir(), "directory for downloaded and intermediate files")
	pf.Duration("http-timeout", 30*time.Second, "timeout for http(s) source downloads")
	pf.Bool("no-detect", false, "skip magic-byte PDF detection of sources")
	pf.Int("max-pages", pagerange.DefaultMaxPages, "largest number of pages one selector may name")

	for _, name := range []string{"log-level", "temp-dir", "http-timeout", "no-detect", "max-pages"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pdfmerge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pdfmerge"))
		}
	}

	viper.SetEnvPrefix("PDFMERGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
