package main

import (
	"edu-video-studio/internal/content"

	"github.com/spf13/cobra"
)

func newGenerateCmd(get func() *app) *cobra.Command {
	var (
		file        string
		instruction string
	)
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Write educational content from a prompt",
		Example: `  studioctl generate "Explain photosynthesis for 10 year olds"
  studioctl generate --file topic.txt --system "You are a chemistry teacher"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readInput(file, args)
			if err != nil {
				return err
			}
			out, err := get().content.GenerateWithInstruction(cmd.Context(), prompt, instruction)
			if err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the prompt from a .txt file")
	cmd.Flags().StringVar(&instruction, "system", "", "Override the system instruction")
	return cmd
}

func newEnhanceCmd(get func() *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "enhance [script]",
		Short: "Rewrite a script for a 2-5 minute spoken video",
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readInput(file, args)
			if err != nil {
				return err
			}
			out, err := get().content.Enhance(cmd.Context(), script)
			if err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the script from a .txt file")
	return cmd
}

func newSummarizeCmd(get func() *app) *cobra.Command {
	var (
		file     string
		maxChars int
	)
	cmd := &cobra.Command{
		Use:   "summarize [script]",
		Short: "Condense a script to a short summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readInput(file, args)
			if err != nil {
				return err
			}
			out, err := get().content.Summarize(cmd.Context(), script, maxChars)
			if err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the script from a .txt file")
	cmd.Flags().IntVar(&maxChars, "max-chars", content.DefaultSummaryChars, "Target summary length in characters")
	return cmd
}
