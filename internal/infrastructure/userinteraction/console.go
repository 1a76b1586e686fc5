package userinteraction

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"smart-browser-agent/internal/application/port/output"
)

var (
	_ output.UserInteractionPort = (*Console)(nil)
	_ output.ProgressPort        = (*Console)(nil)
)

// Console reads tasks from stdin and renders loop progress on stdout.
type Console struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewConsole() *Console {
	return NewConsoleWith(os.Stdin, color.Output)
}

func NewConsoleWith(in io.Reader, out io.Writer) *Console {
	return &Console{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// AskQuestion returns io.EOF when input is exhausted.
func (c *Console) AskQuestion(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(c.out, "\n%s\n> ", question)

	answer, err := c.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && strings.TrimSpace(answer) != "" {
			return strings.TrimSpace(answer), nil
		}
		if err == io.EOF {
			return "", io.EOF
		}
		return "", fmt.Errorf("failed to read user input: %w", err)
	}

	return strings.TrimSpace(answer), nil
}

func (c *Console) ShowIteration(_ context.Context, iteration, maxIterations int) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(c.out, "\n━━━ Итерация %d/%d ━━━\n", iteration, maxIterations)
}

func (c *Console) ShowThinking(_ context.Context, content string) {
	if content == "" {
		return
	}

	blue := color.New(color.FgBlue)
	blue.Fprint(c.out, "\n💭 Thinking: ")

	dim := color.New(color.Faint)
	dim.Fprintln(c.out, truncate(content, 500))
}

func (c *Console) ShowActionStart(_ context.Context, action, arguments string) {
	icon := actionIcon(action)

	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(c.out, "\n%s %s\n", icon, action)

	if summary := formatArguments(action, arguments); summary != "" {
		dim := color.New(color.Faint)
		dim.Fprintf(c.out, "   %s\n", summary)
	}
}

func (c *Console) ShowActionResult(_ context.Context, action, result string, isError bool) {
	if isError {
		red := color.New(color.FgRed)
		red.Fprint(c.out, "❌ ")

		dim := color.New(color.Faint)
		dim.Fprintln(c.out, truncate(result, 300))
		return
	}

	green := color.New(color.FgGreen)
	green.Fprintf(c.out, "✓ %s\n", formatResult(action, result))
}

func (c *Console) ShowFinalAnswer(_ context.Context, answer string) {
	bold := color.New(color.FgGreen, color.Bold)
	bold.Fprintln(c.out, "\n━━━ Final answer ━━━")
	fmt.Fprintln(c.out, answer)
}

func actionIcon(action string) string {
	icons := map[string]string{
		"navigate":         "🌐",
		"click":            "🖱️",
		"fill":             "✏️",
		"screenshot":       "📸",
		"list_elements":    "🔍",
		"get_content":      "📄",
		"wait_for_element": "⏳",
		"close":            "🚪",
	}
	if icon, ok := icons[action]; ok {
		return icon
	}
	return "🔧"
}

func formatArguments(action, arguments string) string {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return ""
	}

	switch action {
	case "navigate":
		if url, ok := args["url"].(string); ok {
			return fmt.Sprintf("URL: %s", url)
		}
	case "click":
		if desc, ok := args["description"].(string); ok {
			return fmt.Sprintf("Target: %s", truncate(desc, 60))
		}
	case "fill":
		desc, _ := args["description"].(string)
		text, _ := args["text"].(string)
		if desc != "" {
			return fmt.Sprintf("Field: %s → %s", truncate(desc, 40), truncate(text, 30))
		}
	case "get_content", "wait_for_element":
		if sel, ok := args["selector"].(string); ok {
			return fmt.Sprintf("Selector: %s", truncate(sel, 60))
		}
	case "screenshot":
		if full, ok := args["full_page"].(bool); ok && full {
			return "Full page"
		}
	}

	return ""
}

func formatResult(action, result string) string {
	switch action {
	case "navigate", "close":
		return result
	case "list_elements":
		if first, _, ok := strings.Cut(result, "\n"); ok {
			return first
		}
		return result
	case "get_content":
		return truncate(result, 150)
	}
	return truncate(result, 100)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
