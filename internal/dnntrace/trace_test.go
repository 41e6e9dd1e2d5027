package dnntrace

import (
	"context"
	"testing"
)

func TestInitReturnsWorkingShutdown(t *testing.T) {
	shutdown, err := Init("dnncore-test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	}()

	ctx, span := StartPhase(context.Background(), PhaseGraphLowering)
	if ctx == nil {
		t.Fatal("StartPhase returned nil context")
	}
	span.End()
}

func TestPhaseConstantsAreDistinct(t *testing.T) {
	phases := []string{PhaseDescriptorBuild, PhaseBinaryParse, PhaseTextParse, PhaseLegacyRead, PhaseGraphLowering}
	seen := make(map[string]bool)
	for _, p := range phases {
		if seen[p] {
			t.Fatalf("duplicate phase name %q", p)
		}
		seen[p] = true
	}
}
