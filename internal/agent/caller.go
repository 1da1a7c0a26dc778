// Package agent drives the external agentic CLI as a subprocess: building
// the command line, capturing or streaming its output, classifying rate
// limits and timeouts, and parsing the structured verdicts it reports.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultCallTimeout bounds one agent call when the caller's context
// carries no deadline of its own.
const DefaultCallTimeout = 10 * time.Minute

// ErrAgentNotFound is returned when the agent command is not on PATH.
var ErrAgentNotFound = errors.New("agent command not found")

// RateLimitError indicates the agent CLI reported a provider rate limit.
// Callers can use errors.As to detect it and back off.
type RateLimitError struct {
	Command     string
	RetryAfter  time.Duration
	RawResponse string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %v", e.Command, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Command)
}

// Result represents the outcome of one agent call.
type Result struct {
	Success      bool
	Output       string
	Error        string
	Duration     time.Duration
	ExitCode     int
	StreamEvents []StreamEvent
	LogPath      string
}

// StreamEvent is one JSON line from the agent's stream-json output.
type StreamEvent struct {
	Type    string         `json:"type"`
	Subtype string         `json:"subtype,omitempty"`
	Data    map[string]any `json:"-"`
	Raw     string         `json:"-"`
}

// CallOption configures an agent call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout    time.Duration
	workingDir string
	mcpConfig  string
	onStream   func(StreamEvent)
}

// WithTimeout sets the timeout for the agent call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// WithWorkingDir sets the working directory for the agent call.
func WithWorkingDir(dir string) CallOption {
	return func(o *callOptions) {
		o.workingDir = dir
	}
}

// WithMCPConfig points the agent at an MCP server configuration file.
func WithMCPConfig(path string) CallOption {
	return func(o *callOptions) {
		o.mcpConfig = path
	}
}

// WithStreamHandler sets a callback for stream events.
func WithStreamHandler(fn func(StreamEvent)) CallOption {
	return func(o *callOptions) {
		o.onStream = fn
	}
}

// Caller handles agent CLI invocations.
type Caller struct {
	Command      string
	Model        string
	OutputFormat string
	LogDir       string
	Verbose      bool
	DryRun       bool
}

// NewCaller creates a new agent caller.
func NewCaller(command, model, outputFormat, logDir string) *Caller {
	return &Caller{
		Command:      command,
		Model:        model,
		OutputFormat: outputFormat,
		LogDir:       logDir,
	}
}

// IsAvailable checks if the agent command is on PATH.
func (c *Caller) IsAvailable() bool {
	_, err := exec.LookPath(c.Command)
	return err == nil
}

// Call invokes the agent with the given prompt.
func (c *Caller) Call(ctx context.Context, prompt string, opts ...CallOption) (*Result, error) {
	options := &callOptions{
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}

	startTime := time.Now()

	if c.DryRun {
		return &Result{
			Success:  true,
			Output:   "[dry run] agent call skipped",
			Duration: time.Since(startTime),
		}, nil
	}

	logFile := c.createLogFile()
	c.logCommand(logFile, prompt, options)

	// Respect a caller-supplied deadline; otherwise apply our own.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.timeout)
		defer cancel()
	}

	args := c.buildArgs(prompt, options)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	if options.workingDir != "" {
		cmd.Dir = options.workingDir
	}

	var result *Result
	var err error
	if c.OutputFormat == "stream-json" {
		result, err = c.executeStream(ctx, cmd, logFile, options.onStream)
	} else {
		result, err = c.executeNormal(ctx, cmd, logFile)
	}

	if result != nil {
		result.Duration = time.Since(startTime)
		if logFile != nil {
			result.LogPath = logFile.Name()
		}
	}

	c.logResult(logFile, result, err)

	return result, err
}

// CallWithRetry invokes the agent, retrying rate limits and timeouts
// with exponential backoff.
func (c *Caller) CallWithRetry(ctx context.Context, prompt string, maxRetries int, opts ...CallOption) (*Result, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		result, err := c.Call(ctx, prompt, opts...)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			continue
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// buildArgs constructs the command line arguments.
func (c *Caller) buildArgs(prompt string, opts *callOptions) []string {
	args := []string{
		"-p", prompt,
		"--output-format", c.OutputFormat,
	}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}
	if opts.mcpConfig != "" {
		args = append(args, "--mcp-config", opts.mcpConfig)
	}
	return args
}

// executeNormal runs the command and captures its full output.
func (c *Caller) executeNormal(ctx context.Context, cmd *exec.Cmd, logFile *os.File) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if logFile != nil {
		_, _ = logFile.WriteString(stdout.String())
		if stderr.Len() > 0 {
			_, _ = logFile.WriteString("\n--- stderr ---\n" + stderr.String())
		}
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("agent: %s timed out: %w", c.Command, ctx.Err())
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("agent: %s canceled: %w", c.Command, ctx.Err())
		}

		if isRateLimitMessage(stderr.String()) || isRateLimitMessage(stdout.String()) {
			return nil, &RateLimitError{
				Command:     c.Command,
				RawResponse: strings.TrimSpace(stderr.String() + stdout.String()),
			}
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result := &Result{
				Output:   stdout.String(),
				Error:    strings.TrimSpace(stderr.String()),
				ExitCode: exitErr.ExitCode(),
			}
			if result.Error == "" {
				result.Error = err.Error()
			}
			return result, nil
		}
		return nil, fmt.Errorf("agent: run %s: %w", c.Command, err)
	}

	return &Result{
		Success: true,
		Output:  stdout.String(),
	}, nil
}

// executeStream runs the command, parsing one JSON event per stdout line.
func (c *Caller) executeStream(ctx context.Context, cmd *exec.Cmd, logFile *os.File, onStream func(StreamEvent)) (*Result, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agent: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("agent: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("agent: start %s: %w", c.Command, err)
	}

	result := &Result{
		StreamEvents: make([]StreamEvent, 0),
	}

	var outputBuilder strings.Builder

	scanner := bufio.NewScanner(stdout)
	// stream events can exceed the default 64KB token size
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		outputBuilder.WriteString(line + "\n")

		if logFile != nil {
			_, _ = logFile.WriteString(line + "\n")
		}

		event := parseStreamEvent(line)
		if event != nil {
			result.StreamEvents = append(result.StreamEvents, *event)
			if onStream != nil {
				onStream(*event)
			}
		}
	}

	stderrBytes, _ := io.ReadAll(stderr)

	err = cmd.Wait()
	result.Output = outputBuilder.String()

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("agent: %s timed out: %w", c.Command, ctx.Err())
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("agent: %s canceled: %w", c.Command, ctx.Err())
		}

		if isRateLimitMessage(string(stderrBytes)) {
			return nil, &RateLimitError{
				Command:     c.Command,
				RawResponse: strings.TrimSpace(string(stderrBytes)),
			}
		}

		result.Error = strings.TrimSpace(string(stderrBytes))
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if result.Error == "" {
				result.Error = err.Error()
			}
			return result, nil
		}
		return nil, fmt.Errorf("agent: run %s: %w", c.Command, err)
	}

	result.Success = true
	return result, nil
}

// parseStreamEvent parses one JSON stream event, returning nil for
// lines that are not JSON objects.
func parseStreamEvent(line string) *StreamEvent {
	if !strings.HasPrefix(line, "{") {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return nil
	}

	event := &StreamEvent{
		Data: data,
		Raw:  line,
	}
	if t, ok := data["type"].(string); ok {
		event.Type = t
	}
	if st, ok := data["subtype"].(string); ok {
		event.Subtype = st
	}
	return event
}

// isRateLimitMessage checks if an error message indicates a rate limit.
func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate_limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "429")
}

// createLogFile opens a per-call log file. Prompts can carry solution
// internals, so the directory is 0700 and the file 0600.
func (c *Caller) createLogFile() *os.File {
	if c.LogDir == "" {
		return nil
	}

	if err := os.MkdirAll(c.LogDir, 0700); err != nil {
		return nil
	}

	timestamp := time.Now().Format("20060102150405")
	path := filepath.Join(c.LogDir, fmt.Sprintf("agent-%s.log", timestamp))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil
	}
	return file
}

func (c *Caller) logCommand(file *os.File, prompt string, opts *callOptions) {
	if file == nil {
		return
	}

	_, _ = file.WriteString("=== Agent Call ===\n")
	_, _ = file.WriteString(fmt.Sprintf("Timestamp: %s\n", time.Now().Format(time.RFC3339)))
	_, _ = file.WriteString(fmt.Sprintf("Command: %s\n", c.Command))
	_, _ = file.WriteString(fmt.Sprintf("Model: %s\n", c.Model))
	_, _ = file.WriteString(fmt.Sprintf("Working dir: %s\n", opts.workingDir))
	if c.Verbose {
		_, _ = file.WriteString(fmt.Sprintf("Prompt:\n%s\n", prompt))
	} else {
		_, _ = file.WriteString(fmt.Sprintf("Prompt length: %d\n", len(prompt)))
	}
	_, _ = file.WriteString("=== Output ===\n")
}

func (c *Caller) logResult(file *os.File, result *Result, err error) {
	if file == nil {
		return
	}
	defer func() { _ = file.Close() }()

	_, _ = file.WriteString("\n=== End ===\n")
	if result != nil {
		_, _ = file.WriteString(fmt.Sprintf("Success: %v\n", result.Success))
		_, _ = file.WriteString(fmt.Sprintf("Exit code: %d\n", result.ExitCode))
		_, _ = file.WriteString(fmt.Sprintf("Duration: %s\n", result.Duration))
	}
	if err != nil {
		_, _ = file.WriteString(fmt.Sprintf("Error: %v\n", err))
	}
}
