package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"filegate/internal/client"
)

// Remove deletes each key and keeps going past failures.
func Remove(ctx context.Context, c *client.Client, keys []string, out io.Writer) error {
	if len(keys) == 0 {
		return errors.New("no keys given")
	}

	var errs []error
	for _, key := range keys {
		if _, err := c.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
			continue
		}
		fmt.Fprintf(out, "deleted\t%s\n", key)
	}
	return errors.Join(errs...)
}
