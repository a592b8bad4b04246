package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"biolabel/internal/pipeline"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// outcomeLines renders one status line per modality of a merge or downsample.
func outcomeLines(report *pipeline.StageReport, colorize bool) []string {
	if report == nil {
		return nil
	}
	lines := make([]string, 0, len(report.Modalities)+1)
	lines = append(lines, fmt.Sprintf("%s:", report.Stage))
	for _, m := range report.Modalities {
		switch m.Outcome {
		case pipeline.OutcomeWritten:
			detail := fmt.Sprintf("%d -> %d rows, %s", m.RowsIn, m.RowsOut, m.Path)
			if m.Files > 0 {
				detail = fmt.Sprintf("%d files, %d rows, %s", m.Files, m.RowsOut, m.Path)
			}
			lines = append(lines, renderStatusLine(m.Modality, statusOK, detail, colorize))
		case pipeline.OutcomeSkipped:
			lines = append(lines, renderStatusLine(m.Modality, statusWarn, "skipped: "+m.Message, colorize))
		default:
			lines = append(lines, renderStatusLine(m.Modality, statusError, m.Message, colorize))
		}
	}
	return lines
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
