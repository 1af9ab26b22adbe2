package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/iamBelugaa/chunkfs/pkg/options"
)

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <name> <path>",
		Short: "Store a local file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}

			inst, err := openInstance(cmd)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, inst.Close()) }()

			if err := inst.WriteFile(cmd.Context(), args[0], data); err != nil {
				return err
			}
			fmt.Printf("Stored %s (%s)\n", args[0], options.FormatBytes(uint64(len(data))))
			return nil
		},
	}
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <name>",
		Short: "Write a stored file to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			inst, err := openInstance(cmd)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, inst.Close()) }()

			data, err := inst.ReadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>...",
		Aliases: []string{"delete"},
		Short:   "Delete stored files",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			inst, err := openInstance(cmd)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, inst.Close()) }()

			for _, name := range args {
				if err := inst.DeleteFile(cmd.Context(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			inst, err := openInstance(cmd)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, inst.Close()) }()

			names, err := inst.ListFiles(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tSIZE")
			for _, name := range names {
				size, err := inst.FileLength(cmd.Context(), name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\n", name, options.FormatBytes(size))
			}
			return w.Flush()
		},
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <name>",
		Short: "Show the size of a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			inst, err := openInstance(cmd)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, inst.Close()) }()

			in, err := inst.OpenFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, in.CloseContext(cmd.Context())) }()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "Name:\t%s\n", in.Name())
			_, _ = fmt.Fprintf(w, "Size:\t%s (%d bytes)\n", options.FormatBytes(in.Length()), in.Length())
			_, _ = fmt.Fprintf(w, "Chunks:\t%d\n", in.ChunkCount())
			return w.Flush()
		},
	}
}
