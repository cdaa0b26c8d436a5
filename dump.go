package anngo

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/hupe1980/anngo/blobstore"
	"github.com/hupe1980/anngo/engine"
	"github.com/hupe1980/anngo/persistence"
	"github.com/hupe1980/anngo/resource"
)

// Dump writes the index state to a file. The write is atomic: the file
// appears under path only after it has been fully written and synced.
// Dumping an empty index returns ErrIndexEmpty.
func (ix *Index) Dump(ctx context.Context, path string) error {
	if ix.closed.Load() {
		return ErrClosed
	}

	start := time.Now()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed.Load() {
		return ErrClosed
	}

	rc := ix.opts.resourceController
	if err := rc.AcquireIOSlot(ctx); err != nil {
		return err
	}
	defer rc.ReleaseIOSlot()

	err := persistence.SaveToFile(path, func(w io.Writer) error {
		if rc != nil {
			w = resource.NewThrottledWriter(ctx, w, rc)
		}
		return ix.eng.WriteSnapshot(w, ix.opts.compression)
	})

	ix.opts.metricsCollector.RecordDump(time.Since(start), err)
	ix.opts.logger.LogDump(ctx, path, err)

	return translateError(ErrDumpFailed, err)
}

// Load reconstructs an index from a dump file. indexType and config must
// match the values used at dump time; mismatches fail with ErrLoadFailed.
func Load(ctx context.Context, path, indexType string, config []byte, optFns ...Option) (*Index, error) {
	return loadFile(ctx, path, indexType, config, persistence.LoadFromFile, optFns)
}

// LoadMmap is Load backed by a memory-mapped read of the dump file. On
// platforms without mmap support it falls back to a buffered read.
func LoadMmap(ctx context.Context, path, indexType string, config []byte, optFns ...Option) (*Index, error) {
	return loadFile(ctx, path, indexType, config, persistence.LoadFromFileMmap, optFns)
}

func loadFile(ctx context.Context, path, indexType string, config []byte, readFile func(string, func(io.Reader) error) error, optFns []Option) (*Index, error) {
	o := applyOptions(optFns)

	start := time.Now()

	rc := o.resourceController
	if err := rc.AcquireIOSlot(ctx); err != nil {
		return nil, err
	}
	defer rc.ReleaseIOSlot()

	var eng *engine.Engine
	err := readFile(path, func(r io.Reader) error {
		if rc != nil {
			r = resource.NewThrottledReader(ctx, r, rc)
		}
		var loadErr error
		eng, loadErr = engine.LoadSnapshot(r, indexType, config, o.engineOptions())
		return loadErr
	})
	if err != nil && os.IsNotExist(err) {
		err = engine.WrapErr(engine.StatusMissingFile, err, "dump file %q", path)
	}

	o.metricsCollector.RecordLoad(time.Since(start), err)
	o.logger.LogLoad(ctx, path, countOf(eng, err), err)

	if err != nil {
		return nil, translateError(ErrLoadFailed, err)
	}
	return &Index{eng: eng, opts: o}, nil
}

// DumpTo writes the index state to a blob store. The blob becomes visible
// under name only after the upload completes; a failed dump leaves no
// partial blob behind.
func (ix *Index) DumpTo(ctx context.Context, store blobstore.Store, name string) error {
	if ix.closed.Load() {
		return ErrClosed
	}

	start := time.Now()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed.Load() {
		return ErrClosed
	}

	rc := ix.opts.resourceController
	if err := rc.AcquireIOSlot(ctx); err != nil {
		return err
	}
	defer rc.ReleaseIOSlot()

	err := ix.writeBlob(ctx, store, name)

	ix.opts.metricsCollector.RecordDump(time.Since(start), err)
	ix.opts.logger.LogDump(ctx, name, err)

	return translateError(ErrDumpFailed, err)
}

func (ix *Index) writeBlob(ctx context.Context, store blobstore.Store, name string) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}

	var out io.Writer = w
	if rc := ix.opts.resourceController; rc != nil {
		out = resource.NewThrottledWriter(ctx, w, rc)
	}

	if err := ix.eng.WriteSnapshot(out, ix.opts.compression); err != nil {
		_ = w.Close()
		_ = store.Delete(ctx, name)
		return err
	}
	return w.Close()
}

// LoadFrom reconstructs an index from a blob store. indexType and config
// must match the values used at dump time.
func LoadFrom(ctx context.Context, store blobstore.Store, name, indexType string, config []byte, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)

	start := time.Now()

	rc := o.resourceController
	if err := rc.AcquireIOSlot(ctx); err != nil {
		return nil, err
	}
	defer rc.ReleaseIOSlot()

	eng, err := readBlob(ctx, store, name, indexType, config, &o)

	o.metricsCollector.RecordLoad(time.Since(start), err)
	o.logger.LogLoad(ctx, name, countOf(eng, err), err)

	if err != nil {
		return nil, translateError(ErrLoadFailed, err)
	}
	return &Index{eng: eng, opts: o}, nil
}

func readBlob(ctx context.Context, store blobstore.Store, name, indexType string, config []byte, o *options) (*engine.Engine, error) {
	r, err := store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, engine.WrapErr(engine.StatusMissingFile, err, "dump blob %q", name)
		}
		return nil, engine.WrapErr(engine.StatusReadError, err, "open dump blob %q", name)
	}
	defer r.Close()

	var in io.Reader = r
	if o.resourceController != nil {
		in = resource.NewThrottledReader(ctx, r, o.resourceController)
	}

	return engine.LoadSnapshot(in, indexType, config, o.engineOptions())
}

func countOf(eng *engine.Engine, err error) int {
	if err != nil || eng == nil {
		return 0
	}
	return eng.Count()
}
