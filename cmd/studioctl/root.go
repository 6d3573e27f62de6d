package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"edu-video-studio/internal/config"
	"edu-video-studio/internal/content"
	"edu-video-studio/internal/ratelimit"
	"edu-video-studio/internal/scripts"
	"edu-video-studio/internal/video"
	"edu-video-studio/pkg/logger"

	"github.com/spf13/cobra"
)

type contentAPI interface {
	GenerateWithInstruction(ctx context.Context, prompt, instruction string) (string, error)
	Enhance(ctx context.Context, script string) (string, error)
	Summarize(ctx context.Context, script string, maxChars int) (string, error)
}

// app holds the collaborators a command needs. It is built once per
// invocation, after flags are parsed.
type app struct {
	content contentAPI
	poller  *video.Poller
	await   video.AwaitOptions
	log     *slog.Logger
}

type appFactory func(debug bool) (*app, error)

func appFromEnv(debug bool) (*app, error) {
	cfg, err := config.LoadCLI()
	if err != nil {
		return nil, err
	}
	env := "production"
	if debug {
		env = "dev"
	}
	log := logger.NewWithWriter(os.Stderr, env, "studioctl")

	gen, err := content.NewGeminiGenerator(content.GeminiConfig{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	hg, err := video.NewHeyGenProvider(video.HeyGenConfig{APIKey: cfg.HeyGen.APIKey, BaseURL: cfg.HeyGen.BaseURL})
	if err != nil {
		return nil, err
	}
	return &app{
		content: content.NewClient(gen, ratelimit.New(cfg.Content.RateLimit, cfg.Content.RateWindow)),
		poller:  video.NewPoller(hg),
		await:   video.AwaitOptions{PollInterval: cfg.Video.PollInterval, MaxWait: cfg.Video.MaxWait},
		log:     log,
	}, nil
}

func newRootCmd(build appFactory) *cobra.Command {
	var (
		debug bool
		a     *app
	)

	root := &cobra.Command{
		Use:   "studioctl",
		Short: "Generate educational scripts and render avatar videos",
		Long: `studioctl drives the text-generation and avatar-video services from the terminal.

Credentials come from GOOGLE_API_KEY and HEYGEN_API_KEY (a .env file in the
working directory is read when present).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = build(debug)
			if err != nil {
				return err
			}
			cmd.SetContext(logger.With(cmd.Context(), a.log))
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging on stderr")

	get := func() *app { return a }
	root.AddCommand(
		newGenerateCmd(get),
		newEnhanceCmd(get),
		newSummarizeCmd(get),
		newAvatarsCmd(get),
		newVoicesCmd(get),
		newRenderCmd(get),
		newStatusCmd(get),
	)
	return root
}

// readInput returns --file contents when set, else the joined args.
func readInput(file string, args []string) (string, error) {
	if file == "" {
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			return "", fmt.Errorf("no input: pass text as arguments or use --file")
		}
		return text, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return scripts.ReadUpload(file, f)
}

func writeLine(w io.Writer, s string) {
	fmt.Fprintln(w, strings.TrimRight(s, "\n"))
}
