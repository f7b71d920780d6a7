// Package commands contains the flectl CLI command implementations.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/cosmosfle/fle/internal/app"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{Reader: os.Stdin, Writer: os.Stdout}
}

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// openInput returns a reader for path, or ioTuple's reader (stdin by
// default) when path is empty.
func openInput(ioTuple IOTuple, path string) (io.ReadCloser, error) {
	if path == "" {
		return nopCloser{ioTuple.Reader}, nil
	}
	return os.Open(path)
}

type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }
