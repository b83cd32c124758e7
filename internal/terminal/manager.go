// Package terminal runs an external text editor inside a PTY so the frontend
// can embed it with xterm.js.
package terminal

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/creack/pty"
)

// Manager owns at most one PTY editor session at a time.
type Manager struct {
	mu      sync.Mutex
	ptmx    *os.File
	cmd     *exec.Cmd
	onData  func(data []byte)
	onExit  func(exitLine int)
	running bool
	editor  string
	// Size applied when the next session starts
	cols, rows uint16
	cursorFile string // vim-family editors write the exit line here
	shellPath  string // user's login shell PATH, resolved once
}

// New creates a Manager for editor. An empty editor falls back to $EDITOR
// and then nvim.
func New(editor string, onData func(data []byte), onExit func(exitLine int)) *Manager {
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "nvim"
	}
	return &Manager{
		onData:     onData,
		onExit:     onExit,
		editor:     resolveEditor(editor),
		cols:       80,
		rows:       24,
		cursorFile: filepath.Join(os.TempDir(), fmt.Sprintf("pageeditor_cursor_%d", os.Getpid())),
		shellPath:  resolveShellPath(),
	}
}

// Editor returns the resolved editor binary.
func (m *Manager) Editor() string { return m.editor }

// resolveEditor finds the absolute path of the editor binary. GUI apps on
// macOS don't inherit the shell's PATH, so common install locations are
// probed too.
func resolveEditor(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	candidates := []string{
		filepath.Join("/opt/homebrew/bin", name),          // Apple Silicon Homebrew
		filepath.Join("/usr/local/bin", name),             // Intel Homebrew / manual installs
		filepath.Join("/run/current-system/sw/bin", name), // NixOS
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".local/bin", name),
			filepath.Join(home, ".nix-profile/bin", name),
		)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	// Let exec.Command fail with a clear error
	return name
}

// resolveShellPath asks the user's login shell for its PATH so tools the
// editor spawns (LSPs, formatters) are found.
func resolveShellPath() string {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/zsh"
	}
	out, err := exec.Command(shell, "-lc", "echo $PATH").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// vimFamily reports whether editor understands +N and -c.
func vimFamily(editor string) bool {
	switch filepath.Base(editor) {
	case "nvim", "vim", "vi":
		return true
	}
	return false
}

// editorArgs builds the command line for opening filePath at lineNumber.
func editorArgs(editor, filePath string, lineNumber int, cursorFile string) []string {
	if !vimFamily(editor) {
		return []string{filePath}
	}
	var args []string
	if lineNumber > 0 {
		args = append(args, fmt.Sprintf("+%d", lineNumber))
	}
	return append(args,
		"-c", fmt.Sprintf("autocmd VimLeave * call writefile([line('.')], '%s')", cursorFile),
		filePath,
	)
}

// buildEnv returns env with PATH replaced by shellPath and terminal
// capabilities set.
func buildEnv(env []string, shellPath string) []string {
	out := make([]string, 0, len(env)+3)
	replaced := false
	for _, e := range env {
		if shellPath != "" && strings.HasPrefix(e, "PATH=") {
			out = append(out, "PATH="+shellPath)
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if shellPath != "" && !replaced {
		out = append(out, "PATH="+shellPath)
	}
	return append(out, "TERM=xterm-256color", "COLORTERM=truecolor")
}

// OpenFile starts the editor on filePath at lineNumber, closing any running
// session first.
func (m *Manager) OpenFile(filePath string, lineNumber int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.closeInternal()
	}
	os.Remove(m.cursorFile)

	cmd := exec.Command(m.editor, editorArgs(m.editor, filePath, lineNumber, m.cursorFile)...)
	cmd.Env = buildEnv(os.Environ(), m.shellPath)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: m.cols, Rows: m.rows})
	if err != nil {
		return fmt.Errorf("start pty: %w", err)
	}
	m.ptmx = ptmx
	m.cmd = cmd
	m.running = true

	go m.pump(ptmx)
	return nil
}

// pump forwards PTY output until the editor exits, then reports the exit
// line.
func (m *Manager) pump(ptmx *os.File) {
	buf := make([]byte, 32768)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 && m.onData != nil {
			m.onData(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			break
		}
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	if m.onExit != nil {
		m.onExit(readExitLine(m.cursorFile))
	}
}

func readExitLine(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	os.Remove(path)
	line, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return line
}

// Write sends keystrokes from xterm.js to the PTY.
func (m *Manager) Write(data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.ptmx == nil {
		return fmt.Errorf("no active terminal session")
	}
	_, err := io.WriteString(m.ptmx, data)
	return err
}

// Resize updates the PTY window size. The size is kept for the next session
// when none is running.
func (m *Manager) Resize(cols, rows uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cols, m.rows = cols, rows
	if !m.running || m.ptmx == nil {
		return nil
	}
	return pty.Setsize(m.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

// IsRunning reports whether a session is active.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Close ends the current session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeInternal()
}

func (m *Manager) closeInternal() {
	if m.ptmx != nil {
		m.ptmx.Close()
		m.ptmx = nil
	}
	if m.cmd != nil && m.cmd.Process != nil {
		m.cmd.Process.Kill()
		m.cmd.Wait()
		m.cmd = nil
	}
	m.running = false
}
