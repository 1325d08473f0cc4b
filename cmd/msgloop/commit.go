package main

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-utilpkg/jsonenc"

	"github.com/joeycumines/go-msgloop/filecommit"
	"github.com/joeycumines/go-msgloop/msgloop"
	"github.com/joeycumines/go-msgloop/thread"
)

type commitArgs struct {
	updates  int
	interval time.Duration
	flush    bool
}

// state is the document persisted by the commit command.
type state struct {
	updatedAt time.Time
	label     string
	updates   int
}

func (x *state) serialize() ([]byte, error) {
	b := make([]byte, 0, 128)
	b = append(b, `{"label":`...)
	b = jsonenc.AppendString(b, x.label)
	b = append(b, `,"updates":`...)
	b = jsonenc.AppendFloat64(b, float64(x.updates))
	b = append(b, `,"updated_at":`...)
	b = jsonenc.AppendString(b, x.updatedAt.UTC().Format(time.RFC3339Nano))
	b = append(b, '}', '\n')
	return b, nil
}

func runCommit(env *environment, args commitArgs) error {
	if args.updates <= 0 {
		return fmt.Errorf("updates must be positive, got %d", args.updates)
	}
	interval := env.cfg.CommitInterval
	if args.interval > 0 {
		interval = args.interval
	}

	mainLoop, err := msgloop.New(env.loopOptions(`main`)...)
	if err != nil {
		return err
	}
	defer mainLoop.Close()
	mainProxy := mainLoop.Proxy()

	fileThread := thread.New(`file`,
		thread.WithLogger(env.logger),
		thread.WithLoopOptions(env.loopOptions(`file`)...),
	)
	if err := fileThread.Start(); err != nil {
		return err
	}
	defer fileThread.Stop()

	var (
		doc      = state{label: `msgloop`}
		applied  int
		writeErr error
		writer   *filecommit.Writer
	)
	maybeQuit := func() {
		if applied == args.updates && !writer.HasPendingWrite() {
			mainLoop.Quit()
		}
	}
	writer = filecommit.New(env.cfg.CommitPath, mainLoop, fileThread.Proxy(),
		filecommit.WithCommitInterval(interval),
		filecommit.WithLogger(env.logger),
		filecommit.WithOnWrite(func(path string, err error) {
			mainProxy.PostTask(func() {
				if err != nil {
					writeErr = err
				}
				maybeQuit()
			})
		}),
	)
	defer writer.Close()

	const step = 10 * time.Millisecond
	for i := range args.updates {
		mainLoop.PostDelayedTask(func() {
			applied++
			doc.updates = applied
			doc.updatedAt = time.Now()
			writer.ScheduleWrite(filecommit.SerializerFunc(doc.serialize))
			if applied == args.updates && args.flush {
				writer.DoScheduledWrite()
			}
		}, time.Duration(i)*step)
	}

	if err := mainLoop.Run(); err != nil {
		return err
	}
	if writeErr != nil {
		return fmt.Errorf("commit %s: %w", writer.Path(), writeErr)
	}

	env.logger.Info().
		Str(`path`, writer.Path()).
		Int(`updates`, applied).
		Log(`commit complete`)

	return nil
}
