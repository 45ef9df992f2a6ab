//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/magefile/mage/mg"
)

// command describes one external tool invocation.
type command struct {
	name   string
	args   []string
	dir    string
	env    []string
	stream bool
}

type cmdOption func(*command)

func withArgs(args ...string) cmdOption {
	return func(c *command) {
		c.args = append(c.args, args...)
	}
}

// withDir runs the tool from dir instead of the repository root.
func withDir(dir string) cmdOption {
	return func(c *command) {
		c.dir = dir
	}
}

// withEnv appends KEY=VALUE pairs to the inherited environment.
func withEnv(pairs ...string) cmdOption {
	return func(c *command) {
		c.env = append(c.env, pairs...)
	}
}

func withStream() cmdOption {
	return func(c *command) {
		c.stream = true
	}
}

// requireTool fails early with a readable message when a tool is not installed.
func requireTool(name, hint string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found in PATH (%s)", name, hint)
	}
	return nil
}

func executeCmd(name string, options ...cmdOption) (string, error) {
	c := &command{name: name}
	for _, o := range options {
		o(c)
	}
	return c.run()
}

func (c *command) run() (string, error) {
	where := ""
	if c.dir != "" {
		where = " (in " + c.dir + ")"
	}
	fmt.Printf("Executing: %s %s%s\n", c.name, strings.Join(c.args, " "), where)

	cmd := exec.Command(c.name, c.args...)
	cmd.Dir = c.dir
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}

	// output is always captured so failures can be reported even when quiet
	var out bytes.Buffer
	stream := mg.Verbose() || c.stream
	if stream {
		cmd.Stdout = io.MultiWriter(&out, os.Stdout)
		cmd.Stderr = io.MultiWriter(&out, os.Stderr)
	} else {
		cmd.Stdout = &out
		cmd.Stderr = &out
	}
	if err := cmd.Run(); err != nil {
		if !stream {
			fmt.Printf("... %s failed:\n%s\n", c.name, out.String())
		}
		return "", fmt.Errorf("error executing %s: %w", c.name, err)
	}
	return out.String(), nil
}
