// internal/platform/termlog/termlog_test.go
package termlog

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/testutil"
)

func TestBroadcaster_AppendAndAll(t *testing.T) {
	b := New(100)

	b.Append(1, "first", KindStdout)
	b.Append(1, "second", KindStdout)
	b.Append(2, "other scan", KindStdout)

	lines := b.All(1)
	testutil.AssertLen(t, lines, 2, "two lines for scan 1")
	testutil.AssertEqual(t, lines[0].Text, "first", "order preserved")
	testutil.AssertEqual(t, lines[1].Text, "second", "order preserved")

	testutil.AssertLen(t, b.All(2), 1, "scans are independent")
	testutil.AssertLen(t, b.All(99), 0, "unknown scan is empty")
}

func TestBroadcaster_MonotonicTimestamps(t *testing.T) {
	b := New(100)

	// Ráfaga rápida: los instantes del reloj pueden coincidir, los de las
	// líneas no deben hacerlo.
	for i := 0; i < 500; i++ {
		b.Append(1, "line", KindStdout)
	}

	lines := b.All(1)
	for i := 1; i < len(lines); i++ {
		if !lines[i].Timestamp.After(lines[i-1].Timestamp) {
			t.Fatalf("timestamp %d not strictly after previous: %v vs %v",
				i, lines[i].Timestamp, lines[i-1].Timestamp)
		}
	}
}

func TestBroadcaster_Since(t *testing.T) {
	b := New(100)

	b.Append(1, "a", KindStdout)
	b.Append(1, "b", KindStdout)
	cursor := b.All(1)[1].Timestamp
	b.Append(1, "c", KindStdout)
	b.Append(1, "d", KindStdout)

	got := b.Since(1, cursor)
	testutil.AssertLen(t, got, 2, "only lines after cursor")
	testutil.AssertEqual(t, got[0].Text, "c", "first new line")
	testutil.AssertEqual(t, got[1].Text, "d", "second new line")
}

func TestBroadcaster_SinceIsStrictlyAfter(t *testing.T) {
	b := New(100)

	b.Append(1, "a", KindStdout)
	cursor := b.All(1)[0].Timestamp

	got := b.Since(1, cursor)
	testutil.AssertLen(t, got, 0, "line at exactly the cursor is excluded")
}

func TestBroadcaster_PollingLosesNothing(t *testing.T) {
	b := New(1000)

	var collected []string
	cursor := time.Time{}
	for i := 0; i < 10; i++ {
		for j := 0; j < 20; j++ {
			b.Append(1, "line", KindStdout)
		}
		batch := b.Since(1, cursor)
		for _, l := range batch {
			collected = append(collected, l.Text)
		}
		if len(batch) > 0 {
			cursor = batch[len(batch)-1].Timestamp
		}
	}

	testutil.AssertLen(t, collected, 200, "every line seen exactly once across polls")
}

func TestBroadcaster_CapacityEviction(t *testing.T) {
	b := New(10)

	for i := 0; i < 25; i++ {
		b.Appendf(1, "line-%d", i)
	}

	lines := b.All(1)
	testutil.AssertLen(t, lines, 10, "capped at capacity")
	testutil.AssertEqual(t, lines[0].Text, "line-15", "oldest lines evicted")
	testutil.AssertEqual(t, lines[9].Text, "line-24", "newest line kept")
}

func TestBroadcaster_Drop(t *testing.T) {
	b := New(10)
	b.Append(1, "x", KindStdout)
	b.Drop(1)

	testutil.AssertEqual(t, b.Len(1), 0, "buffer released")
}

func TestBroadcaster_EmptyLineIgnored(t *testing.T) {
	b := New(10)

	b.Append(1, "", KindStdout)
	b.Append(1, "real", KindStdout)

	testutil.AssertLen(t, b.All(1), 1, "empty input is a no-op")
}

func TestBroadcaster_LineKinds(t *testing.T) {
	b := New(10)

	b.Append(1, "out", KindStdout)
	b.Append(1, "err", KindStderr)
	b.Append(1, "default", "")

	lines := b.All(1)
	testutil.AssertEqual(t, lines[0].Kind, KindStdout, "stdout kind kept")
	testutil.AssertEqual(t, lines[1].Kind, KindStderr, "stderr kind kept")
	testutil.AssertEqual(t, lines[2].Kind, KindStdout, "missing kind defaults to stdout")
}

func TestFeed_WriteLine(t *testing.T) {
	b := New(10)
	var echo strings.Builder

	feed := b.Feed(5).WithEcho(&echo)
	feed.WriteLine("Running subfinder...")
	feed.ErrLine("permission denied")

	lines := b.All(5)
	testutil.AssertLen(t, lines, 2, "both lines reach broadcaster")
	testutil.AssertEqual(t, lines[0].Text, "Running subfinder...", "line text")
	testutil.AssertEqual(t, lines[0].Kind, KindStdout, "feed lines are stdout")
	testutil.AssertEqual(t, lines[1].Kind, KindStderr, "error lines are stderr")
	testutil.AssertEqual(t, echo.String(), "Running subfinder...\npermission denied\n", "both echoed")
}

func TestCapture_RecordsLinesAndForwards(t *testing.T) {
	b := New(100)
	var downstream strings.Builder

	c := NewCapture(b, 3, KindStderr, &downstream)
	c.Write([]byte("first line\nsecond "))
	c.Write([]byte("half\r\n"))
	c.Write([]byte("tail without newline"))
	c.Close()

	lines := b.All(3)
	testutil.AssertLen(t, lines, 3, "split on newlines, partial flushed on close")
	testutil.AssertEqual(t, lines[0].Text, "first line", "first line")
	testutil.AssertEqual(t, lines[1].Text, "second half", "partial joined across writes, CR stripped")
	testutil.AssertEqual(t, lines[2].Text, "tail without newline", "close flushes the remainder")
	testutil.AssertEqual(t, lines[0].Kind, KindStderr, "captured kind")

	testutil.AssertEqual(t, downstream.String(),
		"first line\nsecond half\r\ntail without newline", "raw bytes forwarded untouched")
}

func TestCapture_NestingDoesNotDoubleRecord(t *testing.T) {
	b := New(100)

	inner := NewCapture(b, 7, KindStdout, nil)
	outer := NewCapture(b, 7, KindStdout, inner)
	if outer != inner {
		t.Fatal("wrapping an existing capture for the same scan must reuse it")
	}

	outer.Write([]byte("once\n"))
	testutil.AssertLen(t, b.All(7), 1, "line recorded a single time")
}

func TestFeed_NilSafe(t *testing.T) {
	var feed *Feed
	feed.WriteLine("ignored") // no panic
}

func TestBroadcaster_ConcurrentAppends(t *testing.T) {
	b := New(10000)
	var wg sync.WaitGroup

	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Append(1, "concurrent", KindStdout)
			}
		}()
	}
	wg.Wait()

	testutil.AssertEqual(t, b.Len(1), 1000, "all lines retained")

	lines := b.All(1)
	for i := 1; i < len(lines); i++ {
		if !lines[i].Timestamp.After(lines[i-1].Timestamp) {
			t.Fatal("timestamps not strictly increasing under concurrency")
		}
	}
}
