package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
)

var (
	sseDataPrefix = []byte("data:")
	sseDone       = []byte("[DONE]")
)

// sseReader pulls chat-completions chunks off a server-sent events body.
// Only data lines are decoded; comments, other fields and malformed JSON are
// skipped.
type sseReader struct {
	ctx context.Context
	sc  *bufio.Scanner
}

func newSSEReader(ctx context.Context, r io.Reader) *sseReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &sseReader{ctx: ctx, sc: sc}
}

// next returns the following chunk, or io.EOF once [DONE] arrives or the
// body ends. A read aborted by cancellation reports the context error.
func (r *sseReader) next() (*streamChunk, error) {
	for r.sc.Scan() {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		payload, ok := bytes.CutPrefix(r.sc.Bytes(), sseDataPrefix)
		if !ok {
			continue
		}
		payload = bytes.TrimSpace(payload)
		if bytes.Equal(payload, sseDone) {
			return nil, io.EOF
		}
		chunk := new(streamChunk)
		if json.Unmarshal(payload, chunk) != nil {
			continue
		}
		return chunk, nil
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
