package types_test

import (
	"testing"

	"github.com/downfa11-org/segmentlog/pkg/types"
)

func TestPositionLess(t *testing.T) {
	tests := []struct {
		a, b types.Position
		want bool
	}{
		{types.Position{SequenceID: 0, Offset: 10}, types.Position{SequenceID: 1, Offset: 0}, true},
		{types.Position{SequenceID: 1, Offset: 0}, types.Position{SequenceID: 0, Offset: 10}, false},
		{types.Position{SequenceID: 2, Offset: 5}, types.Position{SequenceID: 2, Offset: 38}, true},
		{types.Position{SequenceID: 2, Offset: 38}, types.Position{SequenceID: 2, Offset: 38}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.want {
			t.Errorf("%s.Less(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPositionString(t *testing.T) {
	if got := (types.Position{SequenceID: 3, Offset: 38}).String(); got != "3@38" {
		t.Fatalf("unexpected string %q", got)
	}
}
