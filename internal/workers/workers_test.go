package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv("ANNOTATION_WORKERS", "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task (1.0x multiplier)",
			multiplier: 1.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU,
		},
		{
			name:       "I/O-bound task (2.0x multiplier)",
			multiplier: 2.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU * 2,
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      2,
			minExpect:  1,
			maxExpect:  2,
		},
		{
			name:       "Very low multiplier still yields one worker",
			multiplier: 0.01,
			limit:      0,
			minExpect:  1,
			maxExpect:  max(1, availableCPU/100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want in [%d, %d]",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountEnvOverride(t *testing.T) {
	t.Setenv("ANNOTATION_WORKERS", "3")

	if got := Count(1.0, 0); got != 3 {
		t.Errorf("Count with override = %d, want 3", got)
	}

	// Limit still caps the override.
	if got := Count(1.0, 2); got != 2 {
		t.Errorf("Count with override and limit = %d, want 2", got)
	}
}

func TestCountEnvOverrideInvalid(t *testing.T) {
	t.Setenv("ANNOTATION_WORKERS", "not-a-number")

	if got := Count(1.0, 0); got < 1 {
		t.Errorf("Count with invalid override = %d, want >= 1", got)
	}
}

func TestHelpers(t *testing.T) {
	if ForCPU(1) != 1 {
		t.Error("ForCPU(1) should be capped at 1")
	}
	if ForIO(1) != 1 {
		t.Error("ForIO(1) should be capped at 1")
	}
	if ForMixed(1) != 1 {
		t.Error("ForMixed(1) should be capped at 1")
	}
}
