package detections

import "fmt"

// OutputLayout is how box rows are laid out in the model's output tensor.
type OutputLayout int

const (
	// LayoutChannelMajor is [1, 4+C, N]: one plane each for cx, cy, w, h
	// followed by one plane per class score.
	LayoutChannelMajor OutputLayout = iota
	// LayoutRowMajor is [1, N, 5+C]: per anchor cx, cy, w, h, objectness,
	// then class scores. Produced by the older training pipeline.
	LayoutRowMajor
)

func (l OutputLayout) String() string {
	switch l {
	case LayoutChannelMajor:
		return "channel-major"
	case LayoutRowMajor:
		return "row-major"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

func (l OutputLayout) validate(shape []int64) error {
	if len(shape) != 3 {
		return fmt.Errorf("%w: output rank %d, expected 3", ErrUnsupportedLayout, len(shape))
	}
	switch l {
	case LayoutChannelMajor:
		if shape[1] < 5 || shape[1] >= shape[2] {
			return fmt.Errorf("%w: output %v is not [1, 4+classes, anchors]; try the alternative loader", ErrUnsupportedLayout, shape)
		}
	case LayoutRowMajor:
		if shape[2] < 6 || shape[2] >= shape[1] {
			return fmt.Errorf("%w: output %v is not [1, anchors, 5+classes]", ErrUnsupportedLayout, shape)
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedLayout, l)
	}
	return nil
}

func (l OutputLayout) numClasses(shape []int64) int {
	if l == LayoutRowMajor {
		return int(shape[2]) - 5
	}
	return int(shape[1]) - 4
}

// candidate is a scored box in model input (letterboxed) pixel space.
type candidate struct {
	box   [4]float32 // x1, y1, x2, y2
	score float32
	class int
}

// decodeOutput turns the raw output tensor into boxes scoring at least threshold.
func decodeOutput(layout OutputLayout, data []float32, shape []int64, threshold float32) ([]candidate, error) {
	if err := layout.validate(shape); err != nil {
		return nil, err
	}
	expected := int(shape[0] * shape[1] * shape[2])
	if len(data) < expected {
		return nil, fmt.Errorf("unexpected predictions length: got %d, want %d", len(data), expected)
	}

	if layout == LayoutRowMajor {
		return decodeRowMajor(data, int(shape[1]), int(shape[2]), threshold), nil
	}
	return decodeChannelMajor(data, int(shape[1]), int(shape[2]), threshold), nil
}

func decodeChannelMajor(data []float32, features, anchors int, threshold float32) []candidate {
	classes := features - 4
	out := make([]candidate, 0, 64)

	for i := 0; i < anchors; i++ {
		best, bestScore := 0, float32(-1)
		for c := 0; c < classes; c++ {
			if s := data[(4+c)*anchors+i]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if bestScore < threshold {
			continue
		}
		out = append(out, candidate{
			box: xywhToXYXY(
				data[i],
				data[anchors+i],
				data[2*anchors+i],
				data[3*anchors+i],
			),
			score: bestScore,
			class: best,
		})
	}
	return out
}

func decodeRowMajor(data []float32, anchors, features int, threshold float32) []candidate {
	classes := features - 5
	out := make([]candidate, 0, 64)

	for i := 0; i < anchors; i++ {
		row := data[i*features : (i+1)*features]
		objectness := row[4]
		if objectness < threshold {
			continue
		}
		best, bestScore := 0, float32(-1)
		for c := 0; c < classes; c++ {
			if s := row[5+c]; s > bestScore {
				best, bestScore = c, s
			}
		}
		score := objectness * bestScore
		if score < threshold {
			continue
		}
		out = append(out, candidate{
			box:   xywhToXYXY(row[0], row[1], row[2], row[3]),
			score: score,
			class: best,
		})
	}
	return out
}

func xywhToXYXY(cx, cy, w, h float32) [4]float32 {
	return [4]float32{cx - w/2, cy - h/2, cx + w/2, cy + h/2}
}
