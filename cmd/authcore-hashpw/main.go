// Command authcore-hashpw produces a password hash record for seeding
// subject databases. On a terminal the password comes from a no-echo
// prompt; when stdin is a pipe the first line is used instead, so
// scripts can feed it without the password landing in argv or process
// listings.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mvachell/authcore/password"
)

func main() {
	var (
		iterations = flag.Int("iterations", password.DefaultIterations, "PBKDF2 iteration count")
		saltLen    = flag.Int("salt-length", password.DefaultSaltLength, "salt length in bytes")
		keyLen     = flag.Int("key-length", password.DefaultKeyLength, "derived key length in bytes")
		confirm    = flag.Bool("confirm", true, "prompt twice and require both entries to match")
	)
	flag.Parse()

	hasher, err := password.New(password.Config{
		Iterations: *iterations,
		SaltLength: *saltLen,
		KeyLength:  *keyLen,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid parameters: %v\n", err)
		os.Exit(2)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	var plaintext string
	if interactive {
		plaintext, err = readPassword("Password: ")
	} else {
		plaintext, err = readPipedPassword(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read password: %v\n", err)
		os.Exit(1)
	}
	if plaintext == "" {
		fmt.Fprintln(os.Stderr, "empty password")
		os.Exit(2)
	}

	if interactive && *confirm {
		again, err := readPassword("Confirm: ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read confirmation: %v\n", err)
			os.Exit(1)
		}
		if plaintext != again {
			fmt.Fprintln(os.Stderr, "passwords do not match")
			os.Exit(2)
		}
	}

	record, err := hasher.Hash(plaintext)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(record)
}

// readPipedPassword reads the first line of piped input. Only the
// trailing newline (and a Windows carriage return) is stripped, so
// passwords with leading or interior whitespace survive intact.
func readPipedPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
