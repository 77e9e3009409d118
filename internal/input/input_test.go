package input

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestForInstruction(t *testing.T) {
	want := []Button{Up, Down, Left, Right, A, B, Start, Select}
	for code, w := range want {
		got, ok := ForInstruction(code)
		if !ok {
			t.Fatalf("code %d: expected ok", code)
		}
		if got != w {
			t.Errorf("code %d: expected %s, got %s", code, w, got)
		}
		back, ok := Instruction(got)
		if !ok || back != code {
			t.Errorf("Instruction(%s): expected %d, got %d (ok=%v)", got, code, back, ok)
		}
	}
}

func TestForInstructionOutOfRange(t *testing.T) {
	for _, code := range []int{-1, 8, 255} {
		if _, ok := ForInstruction(code); ok {
			t.Errorf("code %d: expected not ok", code)
		}
	}
	if _, ok := Instruction(A | B); ok {
		t.Error("combined buttons should not map to an instruction")
	}
}

func TestButtonString(t *testing.T) {
	tests := map[Button]string{
		None:      "NONE",
		A:         "A",
		Start:     "START",
		Up | Left: "LEFT+UP",
	}
	for b, want := range tests {
		if got := b.String(); got != want {
			t.Errorf("Button(%#x).String(): expected %q, got %q", uint8(b), want, got)
		}
	}
}

func TestFakePad(t *testing.T) {
	p := NewFakePad()

	b, err := p.Current()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != None {
		t.Errorf("expected NONE, got %s", b)
	}

	p.Set(A)
	if b, _ := p.Current(); b != A {
		t.Errorf("expected A, got %s", b)
	}
	if p.Reads() != 2 {
		t.Errorf("expected 2 reads, got %d", p.Reads())
	}
}

func TestFakePadError(t *testing.T) {
	p := NewFakePad()
	p.ReadError = errors.New("simulated error")

	if _, err := p.Current(); err == nil {
		t.Error("expected error to be returned")
	}
	if err := p.WaitForRelease(context.Background()); err == nil {
		t.Error("expected error from WaitForRelease")
	}
}

func TestFakePadWaitForRelease(t *testing.T) {
	p := NewFakePad()
	p.Set(B)

	done := make(chan error, 1)
	go func() { done <- p.WaitForRelease(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitForRelease returned while B still pressed")
	case <-time.After(10 * time.Millisecond):
	}

	p.Set(None)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForRelease did not return after release")
	}
}

func TestFakePadReleaseOnWait(t *testing.T) {
	p := NewFakePad()
	p.Set(Start)
	p.ReleaseOnWait = true

	if err := p.WaitForRelease(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b, _ := p.Current(); b != None {
		t.Errorf("expected NONE after release, got %s", b)
	}
}

func TestPollReleaseContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := PollRelease(ctx, func() (Button, error) { return A, nil }, time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
