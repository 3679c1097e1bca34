package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/takesplit/internal/pipeline"
)

func newSegmentCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "segment",
		Short: "Detect speech segments and write Timestamps.txt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
				ranges, err := p.Segment(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d segments written to %s\n", len(ranges), pipeline.TimestampsFile)
				return nil
			})
		},
	}
}

func newTranscribeCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe every segment and write Transcript.txt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
				texts, err := p.Transcribe(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d segments transcribed to %s\n", len(texts), pipeline.TranscriptFile)
				return nil
			})
		},
	}
}

func newAlignCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "align",
		Short: "Match the transcript to the script and write one clip per take",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
				_, err := p.Align(ctx)
				return err
			})
		},
	}
}

func newRenameCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "rename",
		Short: "Copy clips to ClipsOrdered with takes of a line sharing one timestamp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
				moves, err := p.Rename(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d clips renamed in %s\n", len(moves), pipeline.OrderedDir)
				return nil
			})
		},
	}
}

func newRunCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Segment, transcribe and align in one go",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
				_, err := p.Run(ctx)
				return err
			})
		},
	}
}
