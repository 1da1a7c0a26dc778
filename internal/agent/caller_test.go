package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewCaller(t *testing.T) {
	caller := NewCaller("codex", "gpt-5", "json", "/tmp/logs")

	if caller.Command != "codex" {
		t.Errorf("Command = %q, want codex", caller.Command)
	}
	if caller.Model != "gpt-5" {
		t.Errorf("Model = %q, want gpt-5", caller.Model)
	}
	if caller.OutputFormat != "json" {
		t.Errorf("OutputFormat = %q, want json", caller.OutputFormat)
	}
	if caller.LogDir != "/tmp/logs" {
		t.Errorf("LogDir = %q, want /tmp/logs", caller.LogDir)
	}
	if caller.DryRun {
		t.Error("default DryRun should be false")
	}
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name   string
		caller *Caller
		opts   *callOptions
		want   []string
	}{
		{
			name:   "basic",
			caller: &Caller{Command: "codex", OutputFormat: "json"},
			opts:   &callOptions{},
			want:   []string{"-p", "check the login flow", "--output-format", "json"},
		},
		{
			name:   "with model",
			caller: &Caller{Command: "codex", Model: "gpt-5", OutputFormat: "json"},
			opts:   &callOptions{},
			want:   []string{"-p", "check the login flow", "--output-format", "json", "--model", "gpt-5"},
		},
		{
			name:   "with mcp config",
			caller: &Caller{Command: "codex", OutputFormat: "stream-json"},
			opts:   &callOptions{mcpConfig: "/etc/solqa/mcp.json"},
			want:   []string{"-p", "check the login flow", "--output-format", "stream-json", "--mcp-config", "/etc/solqa/mcp.json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.caller.buildArgs("check the login flow", tt.opts)
			if len(args) != len(tt.want) {
				t.Fatalf("buildArgs() = %v, want %v", args, tt.want)
			}
			for i := range args {
				if args[i] != tt.want[i] {
					t.Errorf("args[%d] = %q, want %q", i, args[i], tt.want[i])
				}
			}
		})
	}
}

func TestCallOptions(t *testing.T) {
	opts := &callOptions{}

	WithTimeout(5 * time.Minute)(opts)
	if opts.timeout != 5*time.Minute {
		t.Errorf("timeout = %v, want 5m", opts.timeout)
	}

	WithWorkingDir("/srv/solution")(opts)
	if opts.workingDir != "/srv/solution" {
		t.Errorf("workingDir = %q, want /srv/solution", opts.workingDir)
	}

	WithMCPConfig("/etc/solqa/mcp.json")(opts)
	if opts.mcpConfig != "/etc/solqa/mcp.json" {
		t.Errorf("mcpConfig = %q", opts.mcpConfig)
	}

	called := false
	WithStreamHandler(func(StreamEvent) { called = true })(opts)
	if opts.onStream == nil {
		t.Fatal("onStream not set")
	}
	opts.onStream(StreamEvent{})
	if !called {
		t.Error("stream handler not invoked")
	}
}

func TestParseStreamEvent(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantNil     bool
		wantType    string
		wantSubtype string
	}{
		{
			name:        "system init event",
			line:        `{"type":"system","subtype":"init","model":"gpt-5"}`,
			wantType:    "system",
			wantSubtype: "init",
		},
		{
			name:     "result event",
			line:     `{"type":"result","duration_ms":840}`,
			wantType: "result",
		},
		{
			name:    "plain text line",
			line:    "running check login-happy-path",
			wantNil: true,
		},
		{
			name:    "empty line",
			line:    "",
			wantNil: true,
		},
		{
			name:    "truncated JSON",
			line:    `{"type":`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := parseStreamEvent(tt.line)
			if tt.wantNil {
				if event != nil {
					t.Errorf("parseStreamEvent() = %v, want nil", event)
				}
				return
			}
			if event == nil {
				t.Fatal("parseStreamEvent() = nil, want event")
			}
			if event.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", event.Type, tt.wantType)
			}
			if tt.wantSubtype != "" && event.Subtype != tt.wantSubtype {
				t.Errorf("Subtype = %q, want %q", event.Subtype, tt.wantSubtype)
			}
			if event.Raw != tt.line {
				t.Errorf("Raw = %q, want %q", event.Raw, tt.line)
			}
		})
	}
}

func TestIsRateLimitMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Error: rate limit exceeded", true},
		{"rate_limit_error from provider", true},
		{"HTTP 429 Too Many Requests", true},
		{"connection refused", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isRateLimitMessage(tt.msg); got != tt.want {
			t.Errorf("isRateLimitMessage(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestRateLimitErrorMessage(t *testing.T) {
	err := &RateLimitError{Command: "codex"}
	if !strings.Contains(err.Error(), "codex rate limit exceeded") {
		t.Errorf("Error() = %q", err.Error())
	}

	err = &RateLimitError{Command: "codex", RetryAfter: 30 * time.Second}
	if !strings.Contains(err.Error(), "retry after 30s") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestCallDryRun(t *testing.T) {
	caller := NewCaller("definitely-not-installed-xyz", "", "json", "")
	caller.DryRun = true

	result, err := caller.Call(context.Background(), "check the login flow")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !result.Success {
		t.Error("dry run should report success")
	}
	if !strings.Contains(result.Output, "dry run") {
		t.Errorf("Output = %q", result.Output)
	}
}

func TestIsAvailable(t *testing.T) {
	caller := NewCaller(os.Args[0], "", "json", "")
	if !caller.IsAvailable() {
		t.Error("test binary should be available")
	}

	caller = NewCaller("definitely-not-installed-xyz", "", "json", "")
	if caller.IsAvailable() {
		t.Error("missing command should not be available")
	}
}

func TestCallMissingCommand(t *testing.T) {
	caller := NewCaller("definitely-not-installed-xyz", "", "json", "")

	_, err := caller.Call(context.Background(), "check the login flow", WithTimeout(time.Second))
	if err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestCallWithRetryNonRetryable(t *testing.T) {
	caller := NewCaller("definitely-not-installed-xyz", "", "json", "")

	start := time.Now()
	_, err := caller.CallWithRetry(context.Background(), "check", 3, WithTimeout(time.Second))
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("non-retryable error should not back off")
	}
}

func TestCallWithRetryDryRun(t *testing.T) {
	caller := NewCaller("codex", "", "json", "")
	caller.DryRun = true

	result, err := caller.CallWithRetry(context.Background(), "check", 3)
	if err != nil {
		t.Fatalf("CallWithRetry: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
}

// TestExecHelper is run as a subprocess standing in for the agent CLI.
// SOLQA_TEST_HELPER selects the behavior.
func TestExecHelper(t *testing.T) {
	switch os.Getenv("SOLQA_TEST_HELPER") {
	case "json_ok":
		fmt.Print(`{"verdict":"pass","score":88,"detail":"login flow works"}`)
		os.Exit(0)
	case "exit_fail":
		fmt.Fprintln(os.Stderr, "boom: assertion failed")
		os.Exit(3)
	case "rate_limit":
		fmt.Fprintln(os.Stderr, "HTTP 429 Too Many Requests")
		os.Exit(1)
	case "stream":
		fmt.Println(`{"type":"system","subtype":"init","model":"gpt-5"}`)
		fmt.Println(`note: inspecting the page`)
		fmt.Println(`{"type":"tool_call","subtype":"started"}`)
		fmt.Println(`{"type":"result","duration_ms":840}`)
		os.Exit(0)
	}
}

func helperCommand(t *testing.T, ctx context.Context, mode string) *exec.Cmd {
	t.Helper()
	cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=^TestExecHelper$")
	cmd.Env = append(os.Environ(), "SOLQA_TEST_HELPER="+mode)
	return cmd
}

func TestExecuteNormalSuccess(t *testing.T) {
	caller := NewCaller("codex", "", "json", "")
	ctx := context.Background()

	result, err := caller.executeNormal(ctx, helperCommand(t, ctx, "json_ok"), nil)
	if err != nil {
		t.Fatalf("executeNormal: %v", err)
	}
	if !result.Success {
		t.Error("Success = false, want true")
	}
	if !strings.Contains(result.Output, `"verdict":"pass"`) {
		t.Errorf("Output = %q", result.Output)
	}
}

func TestExecuteNormalExitError(t *testing.T) {
	caller := NewCaller("codex", "", "json", "")
	ctx := context.Background()

	result, err := caller.executeNormal(ctx, helperCommand(t, ctx, "exit_fail"), nil)
	if err != nil {
		t.Fatalf("executeNormal: %v", err)
	}
	if result.Success {
		t.Error("Success = true, want false")
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if !strings.Contains(result.Error, "boom") {
		t.Errorf("Error = %q, want stderr content", result.Error)
	}
}

func TestExecuteNormalRateLimit(t *testing.T) {
	caller := NewCaller("codex", "", "json", "")
	ctx := context.Background()

	_, err := caller.executeNormal(ctx, helperCommand(t, ctx, "rate_limit"), nil)
	if err == nil {
		t.Fatal("expected rate limit error")
	}

	var rateLimitErr *RateLimitError
	if !errors.As(err, &rateLimitErr) {
		t.Fatalf("error = %v, want RateLimitError", err)
	}
	if rateLimitErr.Command != "codex" {
		t.Errorf("Command = %q, want codex", rateLimitErr.Command)
	}
}

func TestExecuteNormalDeadline(t *testing.T) {
	caller := NewCaller("codex", "", "json", "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)

	_, err := caller.executeNormal(ctx, helperCommand(t, ctx, "json_ok"), nil)
	if err == nil {
		t.Fatal("expected deadline error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
}

func TestExecuteStreamEvents(t *testing.T) {
	caller := NewCaller("codex", "", "stream-json", "")
	ctx := context.Background()

	var seen []StreamEvent
	handler := func(e StreamEvent) { seen = append(seen, e) }

	result, err := caller.executeStream(ctx, helperCommand(t, ctx, "stream"), nil, handler)
	if err != nil {
		t.Fatalf("executeStream: %v", err)
	}
	if !result.Success {
		t.Error("Success = false, want true")
	}
	if len(result.StreamEvents) != 3 {
		t.Fatalf("len(StreamEvents) = %d, want 3", len(result.StreamEvents))
	}
	if result.StreamEvents[0].Type != "system" || result.StreamEvents[0].Subtype != "init" {
		t.Errorf("first event = %+v", result.StreamEvents[0])
	}
	if result.StreamEvents[2].Type != "result" {
		t.Errorf("last event = %+v", result.StreamEvents[2])
	}
	if len(seen) != 3 {
		t.Errorf("handler saw %d events, want 3", len(seen))
	}
	// plain lines stay in the raw output even though they parse to no event
	if !strings.Contains(result.Output, "inspecting the page") {
		t.Errorf("Output = %q", result.Output)
	}
}

func TestCreateLogFile(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")
	caller := NewCaller("codex", "", "json", logDir)

	file := caller.createLogFile()
	if file == nil {
		t.Fatal("createLogFile returned nil")
	}
	defer func() { _ = file.Close() }()

	if !strings.HasPrefix(filepath.Base(file.Name()), "agent-") {
		t.Errorf("log file name = %q", file.Name())
	}

	info, err := os.Stat(file.Name())
	if err != nil {
		t.Fatalf("stat log file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("log file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestCreateLogFileNoDir(t *testing.T) {
	caller := NewCaller("codex", "", "json", "")
	if file := caller.createLogFile(); file != nil {
		_ = file.Close()
		t.Error("createLogFile should return nil without a log dir")
	}
}
