/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/microsoft/healthvault-client-go/pkg/config"
)

type hvLogger struct {
	bootstrap *config.Bootstrap
	out       io.Writer
}

type LogOption func(o *hvLogger)

func Config(conf *config.Bootstrap) LogOption {
	return func(l *hvLogger) {
		l.bootstrap = conf
	}
}

// Output overrides the destination, for tests.
func Output(w io.Writer) LogOption {
	return func(l *hvLogger) { l.out = w }
}

func NewhvLog(opts ...LogOption) (zerolog.Logger, error) {
	zerolog.TimestampFieldName = "timestamp"

	log := &hvLogger{out: os.Stdout}

	for _, o := range opts {
		o(log)
	}

	var writer io.Writer = log.out
	if log.bootstrap.Logging.Console.Pretty {
		writer = zerolog.ConsoleWriter{Out: log.out, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if log.bootstrap.Debug {
		level = zerolog.DebugLevel
	}

	hostname, _ := os.Hostname()

	return zerolog.New(writer).Level(level).With().
		Timestamp().
		Caller().
		Str("host", hostname).
		Str("env", log.bootstrap.Environment).
		Logger(), nil
}
