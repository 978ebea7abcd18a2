/*
 *     Copyright 2023 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package limitreader

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// NewLimiter returns a limiter allowing bytesPerSecond, with a burst large
// enough for one read of burst bytes.
func NewLimiter(bytesPerSecond int64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = int(bytesPerSecond)
	}

	return rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
}

// NewLimitReader creates a LimitReader.
// src: reader
// limiter: bytes/second
func NewLimitReader(ctx context.Context, src io.Reader, limiter *rate.Limiter) *LimitReader {
	return &LimitReader{
		ctx:     ctx,
		Src:     src,
		Limiter: limiter,
	}
}

// LimitReader reads stream with a token bucket limiter.
type LimitReader struct {
	ctx     context.Context
	Src     io.Reader
	Limiter *rate.Limiter
}

func (lr *LimitReader) Read(p []byte) (int, error) {
	n, e := lr.Src.Read(p)
	if e != nil && e != io.EOF {
		return n, e
	}

	if n > 0 && lr.Limiter != nil {
		if err := lr.wait(n); err != nil {
			return n, err
		}
	}

	return n, e
}

func (lr *LimitReader) wait(n int) error {
	burst := lr.Limiter.Burst()
	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}

		if err := lr.Limiter.WaitN(lr.ctx, take); err != nil {
			return err
		}
		n -= take
	}

	return nil
}
