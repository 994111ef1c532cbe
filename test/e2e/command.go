package e2e

import (
	"bytes"
	"fmt"
	"os"
	"syscall"

	"github.com/vladimirvivien/gexe/exec"
)

// RunSnapshot runs the snapshot command once and returns its stdout.
func RunSnapshot(binary string, env []string) (string, error) {
	stdout := bytes.NewBufferString("")
	stderr := bytes.NewBufferString("")

	proc := exec.NewProc(fmt.Sprintf("%s snapshot", binary))
	proc.Command().Stdout = stdout
	proc.Command().Stderr = stderr
	proc.Command().Env = append(os.Environ(), env...)

	proc.Start().Wait()

	err := proc.Err()
	if err != nil {
		return "", fmt.Errorf("failed to run snapshot (%w): stderr:%s", err, stderr.String())
	}

	return stdout.String(), nil
}

// process is a long running command stopped with SIGTERM.
type process struct {
	proc   *exec.Proc
	output *bytes.Buffer
}

func startProcess(command string, env []string) (process, error) {
	output := &bytes.Buffer{}

	proc := exec.NewProc(command)
	proc.Command().Stdout = output
	proc.Command().Stderr = output
	proc.Command().Env = append(os.Environ(), env...)

	proc.Start()

	err := proc.Err()
	if err != nil {
		return process{}, fmt.Errorf("failed to start %s: %w", command, err)
	}

	return process{proc: proc, output: output}, nil
}

func (p process) stop() error {
	if p.proc == nil || p.proc.Command().Process == nil {
		return nil
	}

	err := p.proc.Command().Process.Signal(syscall.SIGTERM)
	if err != nil {
		return fmt.Errorf("failed to signal process: %w", err)
	}

	p.proc.Wait()

	return nil
}
