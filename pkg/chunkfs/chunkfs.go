// Package chunkfs stores files as chunks in a blob bucket and keeps files that
// are being read from being deleted underneath their readers.
package chunkfs

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iamBelugaa/chunkfs/internal/engine"
	"github.com/iamBelugaa/chunkfs/internal/readlock"
	"github.com/iamBelugaa/chunkfs/pkg/logger"
	"github.com/iamBelugaa/chunkfs/pkg/options"
)

// Input is an open file; see OpenFile.
type Input = engine.Input

// LockStats is a snapshot of the read-lock registry.
type LockStats = readlock.Stats

type Instance struct {
	engine  *engine.Engine
	options *options.Options
	log     *zap.SugaredLogger
}

// NewInstance builds an Instance from the default options with opts applied.
func NewInstance(ctx context.Context, service string, opts ...options.OptionFunc) (*Instance, error) {
	defaultOpts := options.DefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}
	return NewInstanceWithOptions(ctx, service, defaultOpts, nil)
}

// NewInstanceWithOptions builds an Instance from complete options, such as
// those returned by options.LoadFile. Metrics are registered on reg when set.
func NewInstanceWithOptions(
	ctx context.Context, service string, opts options.Options, reg prometheus.Registerer,
) (*Instance, error) {
	log := logger.New(service, opts.LogLevel)

	eng, err := engine.New(ctx, log, &opts, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chunkfs: %w", err)
	}

	log.Infow(
		"Chunkfs instance initialized successfully",
		"service", service,
		"bucketURL", opts.BucketURL,
		"prefix", opts.Prefix,
		"chunkSize", options.FormatBytes(uint64(opts.ChunkOptions.Size)),
		"lockStrategy", opts.LockOptions.Strategy,
	)

	return &Instance{engine: eng, options: &opts, log: log}, nil
}

func (i *Instance) WriteFile(ctx context.Context, name string, data []byte) error {
	i.log.Infow("WriteFile request received", "fileName", name, "size", len(data))

	if err := isValidFileName(name); err != nil {
		return err
	}
	if err := isValidContent(data); err != nil {
		return err
	}
	return i.engine.WriteFile(ctx, name, data)
}

// OpenFile opens name for reading. The file is not deleted before the
// returned Input is closed, even if DeleteFile is called meanwhile.
func (i *Instance) OpenFile(ctx context.Context, name string) (*Input, error) {
	i.log.Debugw("OpenFile request received", "fileName", name)

	if err := isValidFileName(name); err != nil {
		return nil, err
	}
	return i.engine.OpenFile(ctx, name)
}

// ReadFile opens, reads and closes name.
func (i *Instance) ReadFile(ctx context.Context, name string) ([]byte, error) {
	in, err := i.OpenFile(ctx, name)
	if err != nil {
		return nil, err
	}

	data, err := in.ReadAll(ctx)
	if closeErr := in.CloseContext(ctx); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteFile removes name once no reader has it open.
func (i *Instance) DeleteFile(ctx context.Context, name string) error {
	i.log.Infow("DeleteFile request received", "fileName", name)

	if err := isValidFileName(name); err != nil {
		return err
	}
	return i.engine.DeleteFile(ctx, name)
}

func (i *Instance) FileExists(ctx context.Context, name string) (bool, error) {
	if err := isValidFileName(name); err != nil {
		return false, err
	}
	return i.engine.FileExists(ctx, name)
}

func (i *Instance) FileLength(ctx context.Context, name string) (uint64, error) {
	if err := isValidFileName(name); err != nil {
		return 0, err
	}
	return i.engine.FileLength(ctx, name)
}

func (i *Instance) ListFiles(ctx context.Context) ([]string, error) {
	return i.engine.ListFiles(ctx)
}

// LockStats reports the read-lock registry; ok is false for the "none" strategy.
func (i *Instance) LockStats() (stats LockStats, ok bool) {
	return i.engine.LockStats()
}

func (i *Instance) Close() error {
	i.log.Infow("Close request received")
	err := i.engine.Close()
	_ = i.log.Sync()
	return err
}
