package services

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// speechCommands lists the local TTS programs tried in order.
var speechCommands = []string{"say", "espeak-ng", "espeak", "edge-playback"}

var ErrNoSynthesizer = errors.New("no speech synthesizer found (tried say, espeak-ng, espeak, edge-playback)")

// Synthesizer reads text aloud with a locally installed TTS program.
type Synthesizer struct {
	command string
	run     func(ctx context.Context, name string, args ...string) error
}

// NewSynthesizer uses preferred when set, otherwise the first program of
// speechCommands found on PATH.
func NewSynthesizer(preferred string) (*Synthesizer, error) {
	candidates := speechCommands
	if preferred != "" {
		candidates = []string{preferred}
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return &Synthesizer{command: path, run: runCommand}, nil
		}
	}
	if preferred != "" {
		return nil, fmt.Errorf("speech synthesizer %q not found", preferred)
	}
	return nil, ErrNoSynthesizer
}

func (s *Synthesizer) Command() string {
	return s.command
}

func (s *Synthesizer) Speak(ctx context.Context, text, locale string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := s.run(ctx, s.command, speechArgs(s.command, text, locale)...); err != nil {
		return fmt.Errorf("speech synthesis failed: %w", err)
	}
	return nil
}

// speechArgs places the text after the end of options so replies starting
// with "-" are spoken, not parsed as flags.
func speechArgs(command, text, locale string) []string {
	name := command
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "espeak", "espeak-ng":
		if locale != "" {
			return []string{"-v", strings.ToLower(locale), "--", text}
		}
		return []string{"--", text}
	case "edge-playback":
		return []string{"--text=" + text}
	default:
		return []string{"--", text}
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
