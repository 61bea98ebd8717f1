package gpu_test

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/streamforge/gpu"
)

// mockContext is a minimal gpu.Context used to exercise the single-thread
// attachment contract without a real GPU device.
type mockContext struct {
	attached bool
}

func (m *mockContext) Attach() error {
	if m.attached {
		return gpu.ErrAlreadyAttached
	}
	m.attached = true
	return nil
}

func (m *mockContext) Detach() error {
	m.attached = false
	return nil
}

func (m *mockContext) CreateShared(name string) (gpu.Context, error) {
	return &mockContext{}, nil
}

func (m *mockContext) IsAttachedToCurrentThread() bool { return m.attached }

func TestContextSecondAttachFails(t *testing.T) {
	var ctx gpu.Context = &mockContext{}
	if err := ctx.Attach(); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if err := ctx.Attach(); !errors.Is(err, gpu.ErrAlreadyAttached) {
		t.Fatalf("expected ErrAlreadyAttached, got %v", err)
	}
	if err := ctx.Detach(); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := ctx.Attach(); err != nil {
		t.Fatalf("re-attach after detach: %v", err)
	}
}

func TestContextCreateShared(t *testing.T) {
	ctx := &mockContext{}
	shared, err := ctx.CreateShared("upload")
	if err != nil {
		t.Fatalf("CreateShared: %v", err)
	}
	if shared.IsAttachedToCurrentThread() {
		t.Fatal("freshly created shared context should not be attached")
	}
}
