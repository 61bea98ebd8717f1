package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "streamforge",
	Short: "streamforge drives a pipelined GPU frame-processing engine over a raw frame sequence",
	Long: `streamforge reads a directory of raw video frames, uploads and converts
them through a wgpu-backed pipeline and back to host memory, and either
discards the result or previews it in a window.`,
	Version: "0.1.0",
	RunE:    runRender,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")

	rootCmd.Flags().String("source.dir", "", "directory of raw frame files (required)")
	rootCmd.Flags().String("source.pattern", "", "glob pattern for frame files within source.dir")
	rootCmd.Flags().Int("source.loop_count", 0, "number of times to loop the frame sequence")
	rootCmd.Flags().Bool("preview.enabled", false, "show a live preview window instead of discarding output")
	rootCmd.Flags().Bool("gpu.force_fallback_adapter", false, "force wgpu's software fallback adapter")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
