package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/xxxsen/davconnector/session"
	"golang.org/x/term"
)

// Console serializes every interaction with the user on the terminal.
type Console struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok {
		c.fd = int(f.Fd())
		c.tty = term.IsTerminal(c.fd)
	}
	return c
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || len(line) == 0) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *Console) readPassword() (string, error) {
	if !c.tty {
		return c.readLine()
	}
	raw, err := term.ReadPassword(c.fd)
	fmt.Fprintln(c.out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (c *Console) Printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// PromptCredential asks for a user name and a password, an empty name keeps the remembered one.
func (c *Console) PromptCredential(ctx context.Context, serverURL string, userName string, lastErr error) (*session.Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lastErr != nil {
		fmt.Fprintf(c.out, "login failed: %v\n", lastErr)
	}
	fmt.Fprintf(c.out, "Authentication required for %s\n", serverURL)
	if len(userName) > 0 {
		fmt.Fprintf(c.out, "Name [%s]: ", userName)
	} else {
		fmt.Fprint(c.out, "Name: ")
	}
	name, err := c.readLine()
	if err != nil {
		return nil, session.ErrLoginCanceled
	}
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		name = userName
	}
	if len(name) == 0 {
		return nil, session.ErrLoginCanceled
	}
	fmt.Fprint(c.out, "Password: ")
	passwd, err := c.readPassword()
	if err != nil {
		return nil, session.ErrLoginCanceled
	}
	return &session.Credential{Username: name, Password: passwd}, nil
}

func (c *Console) Confirm(title string, message string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s: %s [y/N] ", title, message)
	line, err := c.readLine()
	if err != nil {
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}

// Choose lists the choices and returns the picked index, preselected is used on empty input.
func (c *Console) Choose(title string, choices []string, preselected string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, title)
	def := -1
	for i, ch := range choices {
		mark := " "
		if ch == preselected {
			mark = "*"
			def = i
		}
		fmt.Fprintf(c.out, " %s%d) %s\n", mark, i+1, ch)
	}
	fmt.Fprint(c.out, "> ")
	line, err := c.readLine()
	if err != nil {
		return 0, false
	}
	line = strings.TrimSpace(line)
	if len(line) == 0 {
		return def, def >= 0
	}
	idx, err := strconv.Atoi(line)
	if err != nil || idx < 1 || idx > len(choices) {
		return 0, false
	}
	return idx - 1, true
}
