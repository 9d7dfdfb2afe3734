package libavdecoder

import (
	"testing"

	"github.com/user/framecap/pkg/ports"
)

func TestSupports(t *testing.T) {
	tests := []struct {
		codec ports.Codec
		want  bool
	}{
		{ports.CodecH264, true},
		{ports.CodecHEVC, true},
		{ports.CodecAV1, true},
		{ports.CodecUnknown, false},
	}
	for _, tt := range tests {
		if got := Supports(tt.codec); got != tt.want {
			t.Errorf("Supports(%s) = %v, want %v", tt.codec, got, tt.want)
		}
	}
}
