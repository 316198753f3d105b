package detections

import (
	"errors"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

var ErrUnsupportedLayout = errors.New("unsupported model layout")

// Session is one inference context with its input and output buffers bound.
// A Session must not be used by two goroutines at once.
type Session interface {
	InputData() []float32
	OutputData() []float32
	Run() error
	Destroy()
}

// ModelSession is a Session backed by an ONNX Runtime session with
// pre-allocated tensors.
type ModelSession struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
}

func (m *ModelSession) InputData() []float32 {
	return m.Input.GetData()
}

func (m *ModelSession) OutputData() []float32 {
	return m.Output.GetData()
}

func (m *ModelSession) Run() error {
	return m.Session.Run()
}

func (m *ModelSession) Destroy() {
	if m.Session != nil {
		m.Session.Destroy()
	}
	if m.Input != nil {
		m.Input.Destroy()
	}
	if m.Output != nil {
		m.Output.Destroy()
	}
}

// modelInfo describes the tensors of a loaded model.
type modelInfo struct {
	InputName   string
	OutputName  string
	InputShape  []int64 // N, C, H, W
	OutputShape []int64
}

func (m modelInfo) inputWidth() int  { return int(m.InputShape[3]) }
func (m modelInfo) inputHeight() int { return int(m.InputShape[2]) }

// inspectModel reads the tensor signature of the model at path and
// resolves dynamic dimensions. The layout decides how the output is checked.
func inspectModel(path string, layout OutputLayout) (*modelInfo, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("read model signature: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 input, got %d", ErrUnsupportedLayout, len(inputs))
	}
	if len(outputs) < 1 {
		return nil, fmt.Errorf("%w: model has no outputs", ErrUnsupportedLayout)
	}

	in := inputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return nil, fmt.Errorf("%w: input %q is %v, expected float32", ErrUnsupportedLayout, in.Name, in.DataType)
	}
	inputShape, err := resolveInputShape(in.Dimensions)
	if err != nil {
		return nil, err
	}

	out := outputs[0]
	if out.DataType != ort.TensorElementDataTypeFloat {
		return nil, fmt.Errorf("%w: output %q is %v, expected float32", ErrUnsupportedLayout, out.Name, out.DataType)
	}
	outputShape, err := resolveOutputShape(out.Dimensions)
	if err != nil {
		return nil, err
	}
	if err := layout.validate(outputShape); err != nil {
		return nil, err
	}

	return &modelInfo{
		InputName:   in.Name,
		OutputName:  out.Name,
		InputShape:  inputShape,
		OutputShape: outputShape,
	}, nil
}

func resolveInputShape(dims []int64) ([]int64, error) {
	if len(dims) != 4 {
		return nil, fmt.Errorf("%w: input rank %d, expected NCHW", ErrUnsupportedLayout, len(dims))
	}
	shape := []int64{1, 3, dims[2], dims[3]}
	if dims[1] > 0 && dims[1] != 3 {
		return nil, fmt.Errorf("%w: input has %d channels, expected 3", ErrUnsupportedLayout, dims[1])
	}
	for i := 2; i < 4; i++ {
		if shape[i] <= 0 {
			shape[i] = DefaultInputSize
		}
	}
	return shape, nil
}

func resolveOutputShape(dims []int64) ([]int64, error) {
	if len(dims) != 3 {
		return nil, fmt.Errorf("%w: output rank %d, expected 3", ErrUnsupportedLayout, len(dims))
	}
	shape := []int64{1, dims[1], dims[2]}
	if shape[1] <= 0 || shape[2] <= 0 {
		return nil, fmt.Errorf("%w: dynamic output shape %v, export the model with a fixed image size", ErrUnsupportedLayout, dims)
	}
	return shape, nil
}

func newModelSession(path string, info *modelInfo, threads int) (*ModelSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("error setting inter-op threads: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(info.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(info.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{info.InputName},
		[]string{info.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &ModelSession{
		Session: session,
		Input:   inputTensor,
		Output:  outputTensor,
	}, nil
}
