package present

import "testing"

func TestWindowSinkCloseWithoutSurfaceIsNoop(t *testing.T) {
	s := &WindowSink{}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
