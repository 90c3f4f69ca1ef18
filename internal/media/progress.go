package media

import (
	"bytes"
	"strconv"
	"strings"
)

// progressWriter parses ffmpeg "-progress pipe:1" key=value output into
// whole percentages of the input duration.
type progressWriter struct {
	durationSec float64
	emit        func(percent int)
	last        int
	buf         bytes.Buffer
}

func newProgressWriter(durationSec float64, emit func(percent int)) *progressWriter {
	return &progressWriter{durationSec: durationSec, emit: emit, last: -1}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// partial line, keep it for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.handleLine(strings.TrimSpace(line))
	}
	return len(p), nil
}

func (w *progressWriter) handleLine(line string) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return
	}

	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports out_time_ms in microseconds as well
		us, err := strconv.ParseFloat(value, 64)
		if err != nil || w.durationSec <= 0 {
			return
		}
		w.report(int(us / 1e6 / w.durationSec * 100))
	case "progress":
		if value == "end" {
			w.report(100)
		}
	}
}

func (w *progressWriter) report(percent int) {
	percent = max(0, min(100, percent))
	if percent <= w.last {
		return
	}
	w.last = percent
	if w.emit != nil {
		w.emit(percent)
	}
}
