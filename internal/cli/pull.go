package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"filegate/internal/client"
	"filegate/pkg/logger"

	"golang.org/x/term"
)

type PullFlags struct {
	Out   string
	Unzip string // extract a zip object into this directory
}

// Pull downloads key. Without -o the bytes go to stdout, unless stdout is a
// terminal, in which case they are saved under the key's base name.
func Pull(ctx context.Context, c *client.Client, flags PullFlags, key string, stdout io.Writer) error {
	if flags.Unzip != "" {
		return pullArchive(ctx, c, key, flags.Unzip, stdout)
	}

	out := flags.Out
	if out == "" && isTerminal(stdout) {
		out = path.Base(key)
	}
	if out == "" {
		_, err := c.Pull(ctx, key, stdout)
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(out), ".filegate-pull-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name()) // no-op after a successful rename

	if _, err := c.Pull(ctx, key, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(f.Name(), out); err != nil {
		return err
	}
	logger.Log.Info().Str("key", key).Str("out", out).Msg("file downloaded")
	return nil
}

func pullArchive(ctx context.Context, c *client.Client, key, dest string, stdout io.Writer) error {
	f, err := os.CreateTemp("", "filegate_download_*.zip")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if _, err := c.Pull(ctx, key, f); err != nil {
		return err
	}
	size, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	logger.Log.Info().Str("dest", dest).Msg("decompressing")
	written, err := client.Decompress(f, size, dest)
	if err != nil {
		return fmt.Errorf("decompress %s: %w", key, err)
	}
	for _, p := range written {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

