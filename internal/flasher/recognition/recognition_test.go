package recognition

import (
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		slotCount  int
		partitions []string
		want       bool
	}{
		{"full slotted pair", 2, []string{"boot_a", "boot_b", "system_a", "system_b", "userdata"}, true},
		{"empty partition list passes", 2, nil, true},
		{"subset passes", 2, []string{"misc"}, true},
		{"unknown partition", 2, []string{"boot_a", "wipe_me"}, false},
		{"single slot device", 1, []string{"boot_a"}, false},
		{"three slot device", 3, []string{"boot_a"}, false},
		{"zero slots", 0, nil, false},
		{"slot suffix missing", 2, []string{"boot"}, false},
		{"case sensitive", 2, []string{"Boot_a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.slotCount, tt.partitions); got != tt.want {
				t.Errorf("Validate(%d, %v) = %v, want %v", tt.slotCount, tt.partitions, got, tt.want)
			}
		})
	}
}

func TestExpectedTableSize(t *testing.T) {
	// The allow-list is the device contract; accidental edits should fail
	// loudly.
	if len(expectedPartitions) != 54 {
		t.Fatalf("expected partition table has %d entries, want 54", len(expectedPartitions))
	}
}
