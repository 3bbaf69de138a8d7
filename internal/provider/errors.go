package provider

import (
	"context"
	stderrors "errors"
	"os/exec"
	"strings"

	"github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/service/common"
)

// notFoundMarkers are yt-dlp stderr fragments meaning the entity does not exist upstream
var notFoundMarkers = []string{
	"video unavailable",
	"does not exist",
	"this channel does not exist",
	"http error 404",
	"private video",
	"has been removed",
	"this video is not available",
	"the playlist does not exist",
}

// classifyError maps a yt-dlp failure to the error taxonomy
func classifyError(err error, what string) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.CodeTransient, what+": provider timed out")
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.CodeTransient, what+": cancelled")
	}
	if stderrors.Is(err, exec.ErrNotFound) {
		return errors.Wrap(err, errors.CodeInternal, what+": yt-dlp executable not found")
	}

	var cmdErr *common.CmdError
	if stderrors.As(err, &cmdErr) {
		stderr := strings.ToLower(cmdErr.Stderr)
		for _, marker := range notFoundMarkers {
			if strings.Contains(stderr, marker) {
				return errors.Wrap(err, errors.CodeNotFound, what+": "+lastLine(cmdErr.Stderr))
			}
		}
		return errors.Wrap(err, errors.CodeTransient, what+": "+lastLine(cmdErr.Stderr))
	}

	return errors.Wrap(err, errors.CodeTransient, what)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
