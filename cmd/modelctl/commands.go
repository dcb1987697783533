package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/germanamz/modelkit/pkg/chat"
	"github.com/germanamz/modelkit/pkg/embedding"
	"github.com/germanamz/modelkit/pkg/engine"
	"github.com/germanamz/modelkit/pkg/image"
	"github.com/germanamz/modelkit/pkg/model"
	"github.com/germanamz/modelkit/pkg/speech"
	"github.com/germanamz/modelkit/pkg/transcription"
)

func newChatCmd(a *app) *cobra.Command {
	var (
		system      string
		modelName   string
		temperature float64
		maxTokens   int
	)

	cmd := &cobra.Command{
		Use:   "chat <message>...",
		Short: "Send a chat prompt and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := capability(a, "chat", func(p *engine.Provider) chat.Model { return p.Chat })
			if err != nil {
				return err
			}

			var msgs []chat.Message
			if system != "" {
				msgs = append(msgs, chat.SystemMessage(system))
			}
			msgs = append(msgs, chat.UserMessage(strings.Join(args, " ")))

			opts := chat.Options{Model: modelName}
			if cmd.Flags().Changed("temperature") {
				opts.Temperature = model.Ptr(temperature)
			}
			if cmd.Flags().Changed("max-tokens") {
				opts.MaxTokens = model.Ptr(maxTokens)
			}

			resp, err := call(cmd, a, m, chat.NewPrompt(msgs...).WithOptions(opts))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Text())
			a.printMetadata(cmd, resp.Metadata)
			return nil
		},
	}

	cmd.Flags().StringVar(&system, "system", "", "system message")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "model override")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "maximum tokens to generate")

	return cmd
}

func newEmbedCmd(a *app) *cobra.Command {
	var (
		modelName  string
		dimensions int
	)

	cmd := &cobra.Command{
		Use:   "embed <text>...",
		Short: "Embed each argument and print one vector per line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := capability(a, "embedding", func(p *engine.Provider) embedding.Model { return p.Embedding })
			if err != nil {
				return err
			}

			req := embedding.NewRequest(args...)
			req.Options = &embedding.Options{Model: modelName}
			if dimensions > 0 {
				req.Options.Dimensions = model.Ptr(dimensions)
			}

			resp, err := call(cmd, a, m, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range resp.Embeddings {
				parts := make([]string, len(e.Vector))
				for i, f := range e.Vector {
					parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
				}
				fmt.Fprintf(out, "%d\t[%s]\n", e.Index, strings.Join(parts, ", "))
			}

			a.printMetadata(cmd, resp.Metadata)
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "model override")
	cmd.Flags().IntVar(&dimensions, "dimensions", 0, "output dimensions, when the model supports it")

	return cmd
}

func newImageCmd(a *app) *cobra.Command {
	var (
		modelName string
		size      string
		n         int
		quality   string
	)

	cmd := &cobra.Command{
		Use:   "image <prompt>...",
		Short: "Generate images and print their URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := capability(a, "image", func(p *engine.Provider) image.Model { return p.Image })
			if err != nil {
				return err
			}

			opts := image.Options{Model: modelName, Quality: quality}
			if n > 0 {
				opts.N = model.Ptr(n)
			}
			if size != "" {
				w, h, err := parseSize(size)
				if err != nil {
					return err
				}
				opts.Width, opts.Height = &w, &h
			}

			resp, err := call(cmd, a, m, image.NewPrompt(strings.Join(args, " ")).WithOptions(opts))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, g := range resp.Generations {
				switch {
				case g.Image.URL != "":
					fmt.Fprintln(out, g.Image.URL)
				case g.Image.B64JSON != "":
					fmt.Fprintf(out, "<base64 image, %d bytes>\n", len(g.Image.B64JSON))
				}
				if g.RevisedPrompt != "" && a.verbose {
					fmt.Fprintf(cmd.ErrOrStderr(), "revised prompt: %s\n", g.RevisedPrompt)
				}
			}

			a.printMetadata(cmd, resp.Metadata)
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "model override")
	cmd.Flags().StringVar(&size, "size", "", "image size as WIDTHxHEIGHT, e.g. 1024x1024")
	cmd.Flags().IntVarP(&n, "count", "n", 0, "number of images")
	cmd.Flags().StringVar(&quality, "quality", "", "image quality, e.g. standard or hd")

	return cmd
}

func newSpeakCmd(a *app) *cobra.Command {
	var (
		modelName string
		voice     string
		format    string
		speed     float64
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "speak <text>...",
		Short: "Synthesize speech and write the audio to a file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := capability(a, "speech", func(p *engine.Provider) speech.Model { return p.Speech })
			if err != nil {
				return err
			}

			opts := speech.Options{Model: modelName, Voice: voice, ResponseFormat: format}
			if cmd.Flags().Changed("speed") {
				opts.Speed = model.Ptr(speed)
			}

			resp, err := call(cmd, a, m, speech.NewPrompt(strings.Join(args, " ")).WithOptions(opts))
			if err != nil {
				return err
			}

			audio := resp.Result().Audio
			if err := os.WriteFile(outPath, audio, 0o600); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(audio), outPath)
			a.printMetadata(cmd, resp.Metadata)
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "model override")
	cmd.Flags().StringVar(&voice, "voice", "", "voice name, e.g. alloy")
	cmd.Flags().StringVar(&format, "format", "", "audio format: mp3, opus, aac, flac, wav or pcm")
	cmd.Flags().Float64Var(&speed, "speed", 1, "playback speed between 0.25 and 4")
	cmd.Flags().StringVarP(&outPath, "out", "o", "speech.mp3", "output file")

	return cmd
}

func newTranscribeCmd(a *app) *cobra.Command {
	var (
		modelName string
		language  string
		format    string
		prompt    string
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file and print the text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := capability(a, "transcription", func(p *engine.Provider) transcription.Model { return p.Transcription })
			if err != nil {
				return err
			}

			audio, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}

			p := transcription.NewPrompt(filepath.Base(args[0]), audio).WithOptions(transcription.Options{
				Model:          modelName,
				Language:       language,
				ResponseFormat: format,
				Prompt:         prompt,
			})

			resp, err := call(cmd, a, m, p)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Result().Text)
			a.printMetadata(cmd, resp.Metadata)
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "model override")
	cmd.Flags().StringVar(&language, "language", "", "ISO-639-1 language of the audio")
	cmd.Flags().StringVar(&format, "format", "", "response format: json, verbose_json, text, srt or vtt")
	cmd.Flags().StringVar(&prompt, "prompt", "", "text to guide the transcription style")

	return cmd
}

func newProvidersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers and their capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := [][]string{{"NAME", "KIND", "BASE URL", "CAPABILITIES"}}
			for _, p := range a.engine.Providers() {
				rows = append(rows, []string{p.Name, p.Kind, p.API.BaseURL, strings.Join(p.Capabilities(), ",")})
			}

			writeTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

// writeTable prints rows as left-aligned columns separated by two spaces.
// Widths are measured in terminal cells so wide runes in provider names
// keep the columns aligned.
func writeTable(w io.Writer, rows [][]string) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString("  ")
		}
		fmt.Fprintln(w, b.String())
	}
}

// capability returns the model selected by get on the chosen provider.
func capability[M any](a *app, name string, get func(*engine.Provider) M) (M, error) {
	var zero M

	p, err := a.provider()
	if err != nil {
		return zero, err
	}

	m := get(p)
	if any(m) == nil {
		return zero, fmt.Errorf("provider %q (%s) does not support %s", p.Name, p.Kind, name)
	}

	return m, nil
}

// call runs one model call, reporting retry events on stderr when verbose.
func call[Req, Resp any](cmd *cobra.Command, a *app, m model.Model[Req, Resp], req Req) (Resp, error) {
	if a.verbose {
		stop := a.watchEvents(cmd.ErrOrStderr())
		defer stop()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return m.Call(ctx, req)
}

// watchEvents prints engine events to w until the returned function is
// called.
func (a *app) watchEvents(w io.Writer) func() {
	bus := a.engine.Events()
	sub := bus.Subscribe(16)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for ev := range sub.C {
			switch ev.Kind {
			case engine.EventRetry:
				fmt.Fprintf(w, "[%s] retry %d: %v\n", ev.Provider, ev.RetryCount, ev.Err)
			case engine.EventCallDone:
				fmt.Fprintf(w, "[%s] done after %d retries\n", ev.Provider, ev.RetryCount)
			}
		}
	}()

	return func() {
		bus.Unsubscribe(sub)
		wg.Wait()
	}
}

// printMetadata reports request id, usage and rate limits on stderr when
// verbose.
func (a *app) printMetadata(cmd *cobra.Command, md model.Metadata) {
	if !a.verbose {
		return
	}

	w := cmd.ErrOrStderr()
	if md.Model != "" {
		fmt.Fprintf(w, "model: %s\n", md.Model)
	}
	if md.RequestID != "" {
		fmt.Fprintf(w, "request id: %s\n", md.RequestID)
	}
	if !md.Usage.IsZero() {
		fmt.Fprintf(w, "usage: prompt=%d generation=%d total=%d\n",
			md.Usage.PromptTokens, md.Usage.GenerationTokens, md.Usage.TotalTokens)
	}
	if !md.RateLimit.IsZero() {
		fmt.Fprintf(w, "rate limit: %s\n", md.RateLimit)
	}
}

// parseSize parses "WIDTHxHEIGHT".
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q: want WIDTHxHEIGHT", s)
	}

	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q: bad width", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q: bad height", s)
	}

	return w, h, nil
}
