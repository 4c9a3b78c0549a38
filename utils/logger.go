package utils

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewRotatingLogger builds a standard logger backed by a size-rotated file.
// With toStdout set, log lines are duplicated to stdout for container runs.
// An empty filePath falls back to stdout only.
func NewRotatingLogger(filePath string, maxSizeMB, maxBackups, maxAgeDays int, compress, toStdout bool) *log.Logger {
	if filePath == "" {
		return log.New(os.Stdout, "", log.LstdFlags|log.LUTC)
	}

	rotator := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   compress,
	}

	var out io.Writer = rotator
	if toStdout {
		out = io.MultiWriter(rotator, os.Stdout)
	}

	return log.New(out, "", log.LstdFlags|log.LUTC)
}
