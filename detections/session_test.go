package detections

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestResolveInputShape(t *testing.T) {
	tests := []struct {
		name    string
		dims    []int64
		want    []int64
		wantErr bool
	}{
		{"fixed", []int64{1, 3, 640, 480}, []int64{1, 3, 640, 480}, false},
		{"dynamic batch", []int64{-1, 3, 320, 320}, []int64{1, 3, 320, 320}, false},
		{"dynamic spatial", []int64{1, 3, -1, -1}, []int64{1, 3, DefaultInputSize, DefaultInputSize}, false},
		{"dynamic height only", []int64{1, 3, 0, 416}, []int64{1, 3, DefaultInputSize, 416}, false},
		{"dynamic channels", []int64{1, -1, 640, 640}, []int64{1, 3, 640, 640}, false},
		{"rank 3", []int64{3, 640, 640}, nil, true},
		{"rank 5", []int64{1, 1, 3, 640, 640}, nil, true},
		{"grayscale", []int64{1, 1, 640, 640}, nil, true},
		{"rgba", []int64{1, 4, 640, 640}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveInputShape(tt.dims)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedLayout) {
					t.Fatalf("expected ErrUnsupportedLayout, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveOutputShape(t *testing.T) {
	tests := []struct {
		name    string
		dims    []int64
		want    []int64
		wantErr bool
	}{
		{"fixed", []int64{1, 5, 8400}, []int64{1, 5, 8400}, false},
		{"dynamic batch", []int64{-1, 84, 8400}, []int64{1, 84, 8400}, false},
		{"dynamic anchors", []int64{1, 5, -1}, nil, true},
		{"dynamic features", []int64{1, -1, 8400}, nil, true},
		{"rank 2", []int64{5, 8400}, nil, true},
		{"rank 4", []int64{1, 1, 5, 8400}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveOutputShape(tt.dims)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedLayout) {
					t.Fatalf("expected ErrUnsupportedLayout, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveOutputShape_DynamicMentionsFixedExport(t *testing.T) {
	_, err := resolveOutputShape([]int64{-1, 5, -1})
	if err == nil || !strings.Contains(err.Error(), "fixed image size") {
		t.Errorf("expected a hint to export with a fixed size, got %v", err)
	}
}

func TestModelInfoInputSize(t *testing.T) {
	info := modelInfo{InputShape: []int64{1, 3, 480, 640}}
	if info.inputWidth() != 640 || info.inputHeight() != 480 {
		t.Errorf("got %dx%d", info.inputWidth(), info.inputHeight())
	}
}
