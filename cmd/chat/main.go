package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"chatbot-backend/internal/config"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/services"
	"chatbot-backend/internal/session"
	"chatbot-backend/internal/worker"
)

var version string = "dev"

type chatOptions struct {
	verbose       bool
	voice         bool
	speechCommand string
	locale        string
}

// newRootCmd builds the chat command with its own flag set.
func newRootCmd() *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with Gemini from the terminal",
		Long: `An interactive terminal chat with Gemini.

Every message is sent on its own; earlier turns are not replayed to the model.
In voice mode replies are also read aloud with a local speech synthesizer
(say, espeak-ng, espeak or edge-playback).

Commands:
  /clear   start a new conversation
  /voice   read replies aloud
  /text    stop reading replies aloud
  /quit    leave`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.Flags().BoolVar(&opts.voice, "voice", false, "Start in voice mode")
	cmd.Flags().StringVar(&opts.speechCommand, "speech-command", "", "Speech program to use instead of auto-detecting one")
	cmd.Flags().StringVar(&opts.locale, "locale", "", "Speech locale (default from SPEECH_LOCALE or en-US)")

	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, opts *chatOptions) error {
	cfg := config.LoadClient()
	if cmd.Flags().Changed("speech-command") {
		cfg.SpeechCommand = opts.speechCommand
	}
	if cmd.Flags().Changed("locale") {
		cfg.SpeechLocale = opts.locale
	}

	gemini, err := services.NewGeminiService(services.GeminiConfig{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		Temperature:    float32(cfg.GeminiTemperature),
		TopP:           float32(cfg.GeminiTopP),
		Timeout:        cfg.GeminiTimeout,
		ConcurrentReqs: cfg.GeminiConcurrentReqs,
	})
	if err != nil {
		return err
	}
	defer gemini.Close()
	log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)

	sessOpts := session.Options{Locale: cfg.SpeechLocale}

	synth, err := services.NewSynthesizer(cfg.SpeechCommand)
	if err != nil {
		if opts.voice {
			fmt.Fprintln(cmd.ErrOrStderr(), noticeStyle.Render("Voice mode unavailable: "+err.Error()))
		}
		log.Printf("✗ Speech output disabled: %v", err)
	} else {
		pool := worker.NewPool(synth, 1, 8)
		pool.Start()
		defer pool.Stop()
		sessOpts.Speaker = pool
		log.Printf("✓ Speech output via %s", synth.Command())
	}

	s := session.New(uuid.New(), gemini, sessOpts)
	if opts.voice {
		s.SetInteractionMode(models.ModeVoice)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), s)
}
