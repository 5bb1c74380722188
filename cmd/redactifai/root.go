package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	version = "dev" // Set via build flags
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "redactifai",
	Short: "Mask Protected Health Information in scanned medical documents",
	Long: `redactifai produces visually masked copies of scanned medical
documents: every region of text carrying Protected Health Information
is painted over with an opaque rectangle.

The pipeline reconciles two independent views of the document — OCR's
word-level geometry and a PHI detector's character-offset annotations —
into pixel rectangles, then paints them onto fresh page images.

Supported formats: TIFF (multi-page), PNG, scanned PDF.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.redactifai.yaml)")
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
