package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chatbot-backend/internal/models"
	"chatbot-backend/internal/session"
)

var (
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

const prompt = "> "

// runREPL reads lines from in until EOF, /quit or ctx is done. Plain lines
// go through the session's draft buffer; lines starting with a slash are
// commands.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, s *session.Session) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprintln(out, noticeStyle.Render(fmt.Sprintf("Chatting in %s mode. Type /quit to leave.", s.InteractionMode())))

	for {
		fmt.Fprint(out, prompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = l
		}

		if quit := handleLine(ctx, out, s, line); quit {
			return nil
		}
	}
}

// handleLine runs one line of input and reports whether the user asked to leave.
func handleLine(ctx context.Context, out io.Writer, s *session.Session, line string) bool {
	trimmed := strings.TrimSpace(line)

	switch strings.ToLower(trimmed) {
	case "/quit", "/exit":
		return true
	case "/clear":
		s.Reset()
		fmt.Fprintln(out, noticeStyle.Render("Conversation cleared."))
		return false
	case "/voice":
		s.SetInteractionMode(models.ModeVoice)
		fmt.Fprintln(out, noticeStyle.Render("Voice mode: replies will be read aloud."))
		return false
	case "/text":
		s.SetInteractionMode(models.ModeText)
		fmt.Fprintln(out, noticeStyle.Render("Text mode."))
		return false
	}

	if strings.HasPrefix(trimmed, "/") {
		fmt.Fprintln(out, errorStyle.Render("Unknown command "+trimmed+". Try /clear, /voice, /text or /quit."))
		return false
	}

	s.SetDraft(line)
	if trimmed == "" {
		return false
	}

	fmt.Fprintln(out, userStyle.Render("You: ")+trimmed)
	fmt.Fprintln(out, noticeStyle.Render("thinking..."))

	res := s.SubmitDraft(ctx)
	switch res.Outcome {
	case session.OutcomeAppended:
		fmt.Fprintln(out, assistantStyle.Render("Gemini: ")+res.Reply)
	case session.OutcomeFailed:
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("Error sending message (%s). Please try again.", res.Err.Kind)))
	}
	return false
}
