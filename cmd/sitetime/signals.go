package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/goodtune/sitetime/internal/usage"
	"github.com/rs/zerolog"
)

// signalSink receives activity signals.
type signalSink interface {
	Signal(ctx context.Context, s usage.Signal) error
}

// readSignals feeds one JSON signal per line from r into sink until r is
// exhausted or ctx is cancelled. Malformed lines are logged and skipped.
func readSignals(ctx context.Context, r io.Reader, sink signalSink, logger zerolog.Logger) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var sig usage.Signal
		if err := json.Unmarshal([]byte(text), &sig); err != nil {
			logger.Warn().Err(err).Int("line", line).Msg("Skipping malformed signal")
			continue
		}
		if err := sink.Signal(ctx, sig); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn().Err(err).Int("line", line).Msg("Skipping invalid signal")
		}
	}
	return scanner.Err()
}
