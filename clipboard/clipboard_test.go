package clipboard

import (
	"context"
	"errors"
	"testing"
)

func TestInterrupted(t *testing.T) {
	if err := interrupted(context.Background(), 0, 3); err != nil {
		t.Fatalf("live context reported %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := interrupted(ctx, 2, 5)
	var ie *Interrupted
	if !errors.As(err, &ie) || ie.Sent != 2 || ie.Total != 5 {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("cause not unwrapped")
	}
}

func TestPasteTextCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// nothing may touch the clipboard once the deadline has passed
	if err := PasteText(ctx, "late"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want canceled", err)
	}
}
