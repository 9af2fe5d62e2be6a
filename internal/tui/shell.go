package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ragtutor/internal/conversation"
)

var exitWords = map[string]struct{}{"exit": {}, "quit": {}, "q": {}, "f": {}}

// IsExit reports whether input asks to leave the chat.
func IsExit(input string) bool {
	_, ok := exitWords[strings.ToLower(strings.TrimSpace(input))]
	return ok
}

// ErrorText is the message shown to the user for a failed query.
func ErrorText(err error) string {
	return "An error occurred while processing your query: " + err.Error()
}

// RunPlain runs a line-oriented chat loop on in and out until an exit word,
// end of input or ctx cancellation.
func RunPlain(ctx context.Context, in io.Reader, out io.Writer, service Querier, history *conversation.History, header string) error {
	rule := strings.Repeat("-", 81)
	if header != "" {
		fmt.Fprintln(out, header)
	}
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, `Welcome to the ChatBot. Type your query below. To exit, type "exit", "quit", "q", or "f".`)
	fmt.Fprintln(out, rule)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, "Prompt: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()
		if IsExit(line) {
			fmt.Fprintln(out, "Exiting...")
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		answer, err := service.Query(ctx, history, line)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, ErrorText(err))
			continue
		}
		fmt.Fprintln(out, "Answer: "+answer.Text)
	}
}
