package nodes

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/security"
)

// SshCommandConfig configures SshCommand. CommandTemplate is the
// program to invoke; ArgTemplates are rendered per record and appended
// as individually-quoted arguments, so record-derived values never get
// concatenated straight into the remote shell line (grounded on the
// Rust original's connectivity.rs SshNode, generalized from its single
// templated command string into a command+args split the way exec.Cmd
// models it).
type SshCommandConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	CommandTemplate string
	ArgTemplates    []string
}

// SshCommand opens one SSH session per input record (password auth,
// matching connectivity.rs's minimal auth path), runs
// Cfg.CommandTemplate with its rendered arguments, and forwards
// {"stdout": ..., "command": ..., "original_input": record}. An
// argument that resembles a shell metacharacter injection is rejected
// rather than sent, and a connection or command failure is reported
// inline as {"error": ..., "original_input": record}, matching
// HttpRequest's per-record error handling.
type SshCommand struct {
	Cfg SshCommandConfig
}

func (s SshCommand) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		out, err := s.runOne(ctx, v)
		if err != nil {
			outputs[0] <- record.Map(map[string]record.Record{
				"error":          record.String(err.Error()),
				"original_input": v,
			})
			continue
		}
		outputs[0] <- out
	}
	return nil
}

func (s SshCommand) runOne(ctx context.Context, in record.Record) (record.Record, error) {
	args := make([]string, len(s.Cfg.ArgTemplates))
	for i, tmpl := range s.Cfg.ArgTemplates {
		rendered := expression.Render(tmpl, in)
		if security.ContainsShellMetaChars(rendered) {
			return record.Null, fmt.Errorf("ssh command: argument %d rejected: contains shell metacharacters", i)
		}
		args[i] = "'" + strings.ReplaceAll(rendered, "'", `'\''`) + "'"
	}
	command := s.Cfg.CommandTemplate
	if len(args) > 0 {
		command = command + " " + strings.Join(args, " ")
	}

	config := &ssh.ClientConfig{
		User:            s.Cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(s.Cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	addr := net.JoinHostPort(s.Cfg.Host, fmt.Sprintf("%d", s.Cfg.Port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return record.Null, fmt.Errorf("ssh command: dial: %w", err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return record.Null, fmt.Errorf("ssh command: session: %w", err)
	}
	defer session.Close()

	var stdout strings.Builder
	session.Stdout = &stdout

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()
	select {
	case <-ctx.Done():
		return record.Null, ctx.Err()
	case err := <-done:
		if err != nil {
			return record.Null, fmt.Errorf("ssh command: %w", err)
		}
	}

	return record.Map(map[string]record.Record{
		"stdout":         record.String(stdout.String()),
		"command":        record.String(command),
		"original_input": in,
	}), nil
}
