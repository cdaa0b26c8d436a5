package resource

import (
	"context"
	"io"
)

// maxWaitChunk bounds a single limiter wait so large buffered writes do not
// request more tokens than the limiter's burst allows.
const maxWaitChunk = 64 * 1024

// ThrottledWriter wraps an io.Writer with the controller's throughput limit.
type ThrottledWriter struct {
	ctx context.Context
	w   io.Writer
	rc  *Controller
}

// NewThrottledWriter creates a writer throttled by rc. A nil controller
// passes writes through untouched.
func NewThrottledWriter(ctx context.Context, w io.Writer, rc *Controller) *ThrottledWriter {
	return &ThrottledWriter{ctx: ctx, w: w, rc: rc}
}

func (tw *ThrottledWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := min(len(p), maxWaitChunk)
		if err := tw.rc.WaitIO(tw.ctx, chunk); err != nil {
			return written, err
		}
		n, err := tw.w.Write(p[:chunk])
		written += n
		if err != nil {
			return written, err
		}
		p = p[chunk:]
	}
	return written, nil
}

// ThrottledReader wraps an io.Reader with the controller's throughput limit.
type ThrottledReader struct {
	ctx context.Context
	r   io.Reader
	rc  *Controller
}

// NewThrottledReader creates a reader throttled by rc. A nil controller
// passes reads through untouched.
func NewThrottledReader(ctx context.Context, r io.Reader, rc *Controller) *ThrottledReader {
	return &ThrottledReader{ctx: ctx, r: r, rc: rc}
}

func (tr *ThrottledReader) Read(p []byte) (int, error) {
	if len(p) > maxWaitChunk {
		p = p[:maxWaitChunk]
	}
	if err := tr.rc.WaitIO(tr.ctx, len(p)); err != nil {
		return 0, err
	}
	return tr.r.Read(p)
}
