package sensor

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestReaderSource(t *testing.T) {
	input := "72\n\n# comment\nnot-a-number\n 68.5 \n-3\n"
	s := NewReaderSource("test", strings.NewReader(input))

	c := newCollector()
	if err := s.Subscribe(context.Background(), c.handle); err != nil {
		t.Fatal(err)
	}
	c.waitFor(t, 3)
	_ = s.Unsubscribe()

	got := c.snapshot()
	want := []float64{72, 68.5, -3}
	if len(got) != len(want) {
		t.Fatalf("samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReaderSource_UnsubscribeWhileBlocked(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	s := NewReaderSource("pipe", pr)
	c := newCollector()
	if err := s.Subscribe(context.Background(), c.handle); err != nil {
		t.Fatal(err)
	}

	go func() { _, _ = pw.Write([]byte("80\n")) }()
	c.waitFor(t, 1)

	done := make(chan struct{})
	go func() {
		_ = s.Unsubscribe()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Unsubscribe blocked on a pending read")
	}
}

func TestReaderSource_ResubscribeKeepsLines(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	s := NewReaderSource("pipe", pr)
	first := newCollector()
	if err := s.Subscribe(context.Background(), first.handle); err != nil {
		t.Fatal(err)
	}
	go func() { _, _ = pw.Write([]byte("80\n")) }()
	first.waitFor(t, 1)
	_ = s.Unsubscribe()

	// Written while nobody is subscribed; the scanner holds it.
	go func() { _, _ = pw.Write([]byte("81\n82\n")) }()

	second := newCollector()
	if err := s.Subscribe(context.Background(), second.handle); err != nil {
		t.Fatal(err)
	}
	second.waitFor(t, 2)
	_ = s.Unsubscribe()

	got := second.snapshot()
	if len(got) != 2 || got[0] != 81 || got[1] != 82 {
		t.Errorf("after resubscribe: samples = %v, want [81 82]", got)
	}
	if n := len(first.snapshot()); n != 1 {
		t.Errorf("first subscription got %d samples after Unsubscribe, want 1", n)
	}
}
