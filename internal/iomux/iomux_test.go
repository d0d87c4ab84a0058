// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iomux // import "github.com/go-daq/acq/internal/iomux"

import (
	"strings"
	"sync"
	"testing"
)

func TestWriter(t *testing.T) {
	w := NewWriter(new(strings.Builder))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := w.Write([]byte("0123456789\n"))
				if err != nil {
					t.Errorf("could not write: %+v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if err := w.Sync(); err != nil {
		t.Fatalf("could not sync: %+v", err)
	}

	got := w.String()
	if want := 10 * 100 * len("0123456789\n"); len(got) != want {
		t.Fatalf("invalid output length: got=%d, want=%d", len(got), want)
	}
	for _, line := range strings.Split(strings.TrimRight(got, "\n"), "\n") {
		if line != "0123456789" {
			t.Fatalf("torn write: %q", line)
		}
	}
}
