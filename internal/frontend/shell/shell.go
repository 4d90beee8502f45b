// Package shell runs a command periodically and turns its output into a
// document.
//
// Without regexes stdout must be JSON. With regexes the document maps each
// key to the first capture group of its expression.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/google/shlex"
	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/frontend"
	"go.uber.org/zap"
)

var (
	ErrEmptyCommand = errors.New("command contains no program")
	ErrInvalidUTF8  = errors.New("command output is not valid UTF-8")
)

type extractor struct {
	key string
	re  *regexp.Regexp
}

// Frontend is a configured command.
type Frontend struct {
	name       string
	cfg        *config.ShellConfig
	program    string
	args       []string
	extractors []extractor
	logger     *zap.Logger
	opts       frontend.Options
}

// New splits the command line and compiles the regexes.
func New(name string, cfg *config.ShellConfig, opts frontend.Options) (*Frontend, error) {
	opts = opts.WithDefaults()

	argv, err := shlex.Split(cfg.Cmd)
	if err != nil {
		return nil, fmt.Errorf("shell frontend %q: split command: %w", name, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("shell frontend %q: %w", name, ErrEmptyCommand)
	}

	f := &Frontend{
		name:    name,
		cfg:     cfg,
		program: argv[0],
		args:    argv[1:],
		logger:  opts.Logger.With(zap.String("frontend", name)),
		opts:    opts,
	}

	keys := make([]string, 0, len(cfg.Regex))
	for key := range cfg.Regex {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		re, err := regexp.Compile(cfg.Regex[key])
		if err != nil {
			return nil, fmt.Errorf("shell frontend %q: regex %q: %w", name, key, err)
		}
		f.extractors = append(f.extractors, extractor{key: key, re: re})
	}
	return f, nil
}

// Stream returns a poller running the command.
func (f *Frontend) Stream(_ context.Context, _ config.FrontendRef, _ []config.NamedValue) (frontend.Stream, error) {
	interval := time.Duration(f.cfg.FrequencySecs) * time.Second
	return frontend.NewPoller(f.name, interval, f.Run, f.opts), nil
}

// Close is a no-op.
func (f *Frontend) Close() error {
	return nil
}

// Run executes the command once. A non-zero exit status is not an error;
// its stdout is used like any other.
func (f *Frontend) Run(ctx context.Context) (document.Document, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, f.program, f.args...)
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			return nil, fmt.Errorf("run %q: %w", f.cfg.Cmd, err)
		}
		f.logger.Debug("Command exited with non-zero status", zap.Int("exit_code", exitErr.ExitCode()))
	}

	output := stdout.Bytes()
	if !utf8.Valid(output) {
		return nil, fmt.Errorf("run %q: %w", f.cfg.Cmd, ErrInvalidUTF8)
	}

	if len(f.extractors) == 0 {
		doc, err := document.Decode(output)
		if err != nil {
			return nil, fmt.Errorf("parse output of %q: %w", f.cfg.Cmd, err)
		}
		return doc, nil
	}
	return f.extract(string(output)), nil
}

func (f *Frontend) extract(output string) document.Document {
	doc := make(map[string]any, len(f.extractors))
	for _, e := range f.extractors {
		match := e.re.FindStringSubmatch(output)
		if match == nil {
			f.logger.Warn("Regex does not match command output", zap.String("key", e.key))
			continue
		}
		if len(match) < 2 {
			f.logger.Warn("Regex has no capture group", zap.String("key", e.key))
			continue
		}
		doc[e.key] = match[1]
	}
	return doc
}
