package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// Shortest key accepted for HS256
const MinSecretKeyBytesLen = 32

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

// Print random hex encoded key
// Hex doubles the length, so a key of N bytes is good for algorithms needing up to 2N bytes
func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	size := fs.IntP("bytes", "b", MinSecretKeyBytesLen, "Random bytes in key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *size < MinSecretKeyBytesLen {
		return fmt.Errorf("key has to be at least %d bytes, got %d", MinSecretKeyBytesLen, *size)
	}

	b := make([]byte, *size)
	if _, err := rand.Read(b); err != nil {
		return err
	}

	_, err := fmt.Fprintln(out, hex.EncodeToString(b))
	return err
}
