package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"edu-video-studio/internal/video"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newAvatarsCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "avatars",
		Short: "List available avatars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			avatars, err := get().poller.Provider().ListAvatars(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tGENDER")
			for _, a := range avatars {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ID, a.Name, a.Gender)
			}
			return tw.Flush()
		},
	}
}

func newVoicesCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List available voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			voices, err := get().poller.Provider().ListVoices(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tLANGUAGE\tGENDER")
			for _, v := range voices {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Language, v.Gender)
			}
			return tw.Flush()
		},
	}
}

func newRenderCmd(get func() *app) *cobra.Command {
	var (
		file    string
		req     video.SubmitRequest
		out     string
		noWait  bool
		maxWait int
	)
	cmd := &cobra.Command{
		Use:   "render [script]",
		Short: "Render an avatar video and wait for it to finish",
		Example: `  studioctl render --avatar Daisy-inskirt-20220818 --file lesson.txt --out lesson.mp4
  studioctl render --avatar Daisy-inskirt-20220818 --no-wait "Hello class"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			script, err := readInput(file, args)
			if err != nil {
				return err
			}
			req.Script = script

			id, err := a.poller.Submit(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job_id: %s\n", id)
			if noWait {
				return nil
			}

			opts := a.await
			if maxWait > 0 {
				opts.MaxWait = time.Duration(maxWait) * time.Second
			}
			job, err := a.poller.AwaitCompletion(ctx, id, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\nvideo_url: %s\nduration: %.1fs\n", statusText(job.Status), job.VideoURL, job.DurationSeconds)

			if out == "" {
				return nil
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			n, err := a.poller.Provider().Download(ctx, job.VideoURL, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved: %s (%d bytes)\n", out, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the script from a .txt file")
	cmd.Flags().StringVar(&req.AvatarID, "avatar", "", "Avatar id (required)")
	cmd.Flags().StringVar(&req.VoiceID, "voice", "", "Voice id; defaults to the avatar's voice")
	cmd.Flags().StringVar(&req.Title, "title", video.DefaultTitle, "Video title")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Download the finished video to this path")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Submit only and print the job id")
	cmd.Flags().IntVar(&maxWait, "max-wait", 0, "Seconds to wait before giving up (default from VIDEO_MAX_WAIT)")
	_ = cmd.MarkFlagRequired("avatar")
	return cmd
}

func newStatusCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the current state of a render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := get().poller.Poll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "job_id: %s\nstatus: %s\n", job.ID, statusText(job.Status))
			if job.VideoURL != "" {
				fmt.Fprintf(w, "video_url: %s\nduration: %.1fs\n", job.VideoURL, job.DurationSeconds)
			}
			if job.ErrorDetail != "" {
				fmt.Fprintf(w, "error: %s\n", failColor.Sprint(job.ErrorDetail))
			}
			return nil
		},
	}
}

var (
	doneColor    = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed)
	pendingColor = color.New(color.FgYellow)
)

func statusText(s video.Status) string {
	switch s {
	case video.StatusCompleted:
		return doneColor.Sprint(s)
	case video.StatusFailed:
		return failColor.Sprint(s)
	default:
		return pendingColor.Sprint(s)
	}
}
