package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iamBelugaa/chunkfs/pkg/chunkfs"
	"github.com/iamBelugaa/chunkfs/pkg/options"
)

var (
	cfgFile   string
	bucketURL string
	prefix    string
	logLevel  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chunkfs",
		Short: "Store and read chunked files in a blob bucket",
		Long: `chunkfs stores files as fixed-size chunks in a blob bucket.

Any gocloud.dev bucket URL works: file://, mem://, s3://, gs:// or azblob://.

Examples:
  # Store a file
  chunkfs --bucket file:///var/lib/chunkfs put _0.cfs ./segment.cfs

  # Print it back
  chunkfs --bucket file:///var/lib/chunkfs cat _0.cfs

  # Remove it
  chunkfs --bucket file:///var/lib/chunkfs rm _0.cfs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&bucketURL, "bucket", "", "bucket URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&prefix, "prefix", "", "key prefix (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newPutCmd(),
		newCatCmd(),
		newRmCmd(),
		newLsCmd(),
		newStatCmd(),
	)
	return rootCmd
}

// openInstance builds an Instance from the config file, if any, with the
// command line flags applied on top.
func openInstance(cmd *cobra.Command) (*chunkfs.Instance, error) {
	opts := options.DefaultOptions()
	if cfgFile != "" {
		loaded, err := options.LoadFile(cfgFile)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}

	for _, opt := range []options.OptionFunc{
		options.WithBucketURL(bucketURL),
		options.WithPrefix(prefix),
	} {
		opt(&opts)
	}
	if cmd.Flags().Changed("log-level") || cfgFile == "" {
		options.WithLogLevel(logLevel)(&opts)
	}

	return chunkfs.NewInstanceWithOptions(cmd.Context(), "chunkfs-cli", opts, nil)
}
