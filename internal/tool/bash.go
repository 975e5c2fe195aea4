package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/gatecode-ai/gatecode/internal/fspath"
	"github.com/gatecode-ai/gatecode/internal/permission"
)

const (
	DefaultBashTimeout = 120 * time.Second
	MaxBashTimeout     = 10 * time.Minute
	MaxOutputLength    = 30000
)

const bashDescription = `Executes a bash command in the project directory.

Usage:
- Command is required
- Optional timeout in milliseconds (max 600000)
- Provide a brief description of what the command does
- Output is captured from stdout and stderr
- Commands are run with a process group for proper cleanup`

// BashTool implements shell command execution.
type BashTool struct {
	workDir string
	shell   string
	perms   *permission.Broker
}

// BashInput represents the input for the bash tool.
type BashInput struct {
	Command     string `json:"command"`
	Timeout     int    `json:"timeout,omitempty"` // milliseconds
	Description string `json:"description"`
}

// NewBashTool creates a new bash tool.
func NewBashTool(deps Deps) *BashTool {
	return &BashTool{
		workDir: deps.WorkDir,
		shell:   detectShell(),
		perms:   deps.Perms,
	}
}

func detectShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		if s != "/bin/fish" && s != "/usr/bin/fish" &&
			s != "/bin/nu" && s != "/usr/bin/nu" {
			return s
		}
	}

	if runtime.GOOS == "darwin" {
		return "/bin/zsh"
	}

	if bash, err := exec.LookPath("bash"); err == nil {
		return bash
	}
	return "/bin/sh"
}

func (t *BashTool) ID() string             { return "bash" }
func (t *BashTool) Description() string    { return bashDescription }
func (t *BashTool) Visibility() Visibility { return VisibilityWrite }

func (t *BashTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The command to execute"
			},
			"timeout": {
				"type": "integer",
				"description": "Optional timeout in milliseconds (max 600000)"
			},
			"description": {
				"type": "string",
				"description": "Brief description of what this command does"
			}
		},
		"required": ["command", "description"]
	}`)
}

func (t *BashTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params BashInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	workDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}

	if t.perms != nil && toolCtx != nil {
		if err := t.checkPermissions(ctx, params.Command, workDir, toolCtx); err != nil {
			return nil, err
		}
	}

	timeout := DefaultBashTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Millisecond
		if timeout > MaxBashTimeout {
			timeout = MaxBashTimeout
		}
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, t.shell, "-c", params.Command)
	cmd.Dir = workDir
	cmd.Env = os.Environ()
	// Own process group so timeouts kill children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	if toolCtx != nil {
		toolCtx.SetMetadata(params.Description, map[string]any{
			"output":      "",
			"description": params.Description,
		})
	}

	output, err := cmd.CombinedOutput()
	timedOut := cmdCtx.Err() == context.DeadlineExceeded

	result := string(output)
	if len(result) > MaxOutputLength {
		result = result[:MaxOutputLength] + "\n\n(Output truncated)"
	}
	if timedOut {
		result += fmt.Sprintf("\n\n(Command timed out after %v)", timeout)
	}

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil && !timedOut {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			result += fmt.Sprintf("\n\nError: %v", err)
		}
	}

	title := params.Description
	if title == "" {
		title = "Run command"
	}

	return &Result{
		Title:  title,
		Output: result,
		Metadata: map[string]any{
			"output":      result,
			"exit":        exitCode,
			"description": params.Description,
		},
	}, nil
}

// checkPermissions parses the command line and routes it through the broker.
// Unparseable commands ask with the raw command as the pattern.
func (t *BashTool) checkPermissions(ctx context.Context, command, workDir string, toolCtx *Context) error {
	commands, err := permission.ParseCommands(command)
	if err != nil {
		return t.perms.Ask(ctx, permission.Request{
			SessionID: toolCtx.SessionID,
			Kind:      permission.KindBash,
			Patterns:  []string{command},
			Title:     command,
			MessageID: toolCtx.MessageID,
			CallID:    toolCtx.CallID,
			Metadata: map[string]any{
				"command":     command,
				"parseFailed": true,
			},
		})
	}

	// Commands that delete or move files get their path arguments checked
	// against the project root. Touching paths outside it needs a separate,
	// explicit approval.
	for _, cmd := range commands {
		if !permission.IsDangerousCommand(cmd.Name) {
			continue
		}
		for _, p := range permission.ExtractPaths(cmd) {
			resolved := p
			if !filepath.IsAbs(resolved) {
				resolved = filepath.Join(workDir, resolved)
			}
			resolved = filepath.Clean(resolved)
			if fspath.Within(resolved, workDir) {
				continue
			}
			err := t.perms.Ask(ctx, permission.Request{
				SessionID: toolCtx.SessionID,
				Kind:      permission.KindExternalDir,
				Patterns:  []string{filepath.Dir(resolved), filepath.Join(filepath.Dir(resolved), "*")},
				Title:     fmt.Sprintf("Command references paths outside of %s", workDir),
				MessageID: toolCtx.MessageID,
				CallID:    toolCtx.CallID,
				Metadata: map[string]any{
					"command": command,
					"path":    resolved,
				},
			})
			if err != nil {
				return err
			}
		}
	}

	patterns := permission.BuildPatterns(commands)
	if len(patterns) == 0 {
		return nil
	}

	return t.perms.Ask(ctx, permission.Request{
		SessionID: toolCtx.SessionID,
		Kind:      permission.KindBash,
		Patterns:  patterns,
		Title:     command,
		MessageID: toolCtx.MessageID,
		CallID:    toolCtx.CallID,
		Metadata: map[string]any{
			"command":  command,
			"patterns": patterns,
		},
	})
}
