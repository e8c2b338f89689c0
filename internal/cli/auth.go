package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filegate/internal/config"

	"golang.org/x/term"
)

// Login stores a capability token for later requests. On a terminal the
// token is read without echo.
func Login(in io.Reader, out io.Writer) error {
	fmt.Fprint(out, "Token: ")

	var token string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return err
		}
		token = string(b)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		token = line
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}
	if err := config.WriteToken(token); err != nil {
		return err
	}
	fmt.Fprintln(out, "Token saved.")
	return nil
}

// Logout forgets the stored token.
func Logout(out io.Writer) error {
	if err := config.RemoveToken(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Logged out.")
	return nil
}
