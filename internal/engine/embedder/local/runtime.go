package local

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX Runtime environment is process-wide and initialized once.
var ortInit struct {
	once sync.Once
	err  error
}

func initRuntime(libPath string) error {
	ortInit.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortInit.err = ort.InitializeEnvironment()
	})
	return ortInit.err
}

var bertInputs = []string{"input_ids", "attention_mask", "token_type_ids"}

// session runs a BERT-style encoder that emits [batch, seq, dim] hidden states.
type session struct {
	sess   *ort.DynamicAdvancedSession
	output string
	dim    int64
}

func openSession(modelPath, libPath string, threads int) (*session, error) {
	if err := initRuntime(libPath); err != nil {
		return nil, fmt.Errorf("onnx: init runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: read model info: %w", err)
	}
	have := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		have[in.Name] = true
	}
	for _, name := range bertInputs {
		if !have[name] {
			return nil, fmt.Errorf("onnx: model has no %q input", name)
		}
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	out := outputs[0]
	if len(out.Dimensions) != 3 {
		return nil, fmt.Errorf("onnx: output %q has shape %v, want [batch, seq, dim]", out.Name, out.Dimensions)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("onnx: set threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("onnx: set threads: %w", err)
	}

	sess, err := ort.NewDynamicAdvancedSession(modelPath, bertInputs, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}
	return &session{sess: sess, output: out.Name, dim: out.Dimensions[2]}, nil
}

// run returns the flattened hidden states for b.
func (s *session) run(b batch) ([]float32, error) {
	shape := ort.NewShape(b.size, b.seqLen)
	var inputs []ort.Value
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for i, data := range [][]int64{b.inputIDs, b.attentionMask, b.tokenTypeIDs} {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("onnx: %s tensor: %w", bertInputs[i], err)
		}
		inputs = append(inputs, t)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(b.size, b.seqLen, s.dim))
	if err != nil {
		return nil, fmt.Errorf("onnx: output tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.sess.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: run: %w", err)
	}
	return append([]float32(nil), out.GetData()...), nil
}

func (s *session) close() error {
	return s.sess.Destroy()
}
