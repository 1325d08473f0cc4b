// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package msgloop

import (
	"errors"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	pumpFactory     func() (Pump, error)
	logger          *logiface.Logger[logiface.Event]
	metrics         *Metrics
	panicHandler    func(error)
	name            string
	debugMode       bool
	propagatePanics bool
}

// Option configures a Loop instance.
type Option interface {
	applyLoop(*loopOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (o *optionImpl) applyLoop(opts *loopOptions) error {
	return o.applyLoopFunc(opts)
}

// WithName sets the name used to identify the loop in logs and metrics.
func WithName(name string) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.name = name
		return nil
	}}
}

// WithPump replaces the default pump. The factory is called once, by New,
// on the goroutine the loop is being bound to. If the returned Pump
// implements io.Closer, it is closed by Loop.Close.
func WithPump(factory func() (Pump, error)) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if factory == nil {
			return errors.New("msgloop: nil pump factory")
		}
		opts.pumpFactory = factory
		return nil
	}}
}

// WithLogger attaches a structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithDebugMode enables programmer-error assertions (e.g. panicking on a post
// to a closed loop) and per-task logging of work dropped at Close.
func WithDebugMode(enabled bool) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.debugMode = enabled
		return nil
	}}
}

// WithMetrics attaches m as a task and destruction observer of the loop.
// A nil m disables metrics.
func WithMetrics(m *Metrics) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.metrics = m
		return nil
	}}
}

// WithPanicHandler is called, on the loop goroutine, with a *PanicError
// for every task that panics (after it has been logged).
func WithPanicHandler(fn func(error)) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.panicHandler = fn
		return nil
	}}
}

// WithPanicPropagation disables panic recovery, such that a panicking task
// unwinds through Run.
func WithPanicPropagation(enabled bool) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.propagatePanics = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to loopOptions.
func resolveOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{
		pumpFactory: NewDefaultPump,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
