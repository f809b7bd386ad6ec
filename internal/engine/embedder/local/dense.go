package local

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// DefaultDenseTensor is the weight tensor name sentence-transformers uses for
// a Dense module.
const DefaultDenseTensor = "linear.weight"

// dense is a bias-free linear layer, weights row-major [out, in].
type dense struct {
	weights []float32
	in, out int
}

type tensorInfo struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// loadDense reads one F32 matrix from a safetensors file.
func loadDense(path, tensor string) (*dense, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dense: %w", err)
	}
	return parseDense(raw, tensor)
}

func parseDense(raw []byte, tensor string) (*dense, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("dense: file too small (%d bytes)", len(raw))
	}
	hlen := binary.LittleEndian.Uint64(raw[:8])
	if hlen > uint64(len(raw)-8) {
		return nil, fmt.Errorf("dense: header length %d exceeds file size", hlen)
	}
	body := raw[8+hlen:]

	var header map[string]json.RawMessage
	if err := json.Unmarshal(raw[8:8+hlen], &header); err != nil {
		return nil, fmt.Errorf("dense: parse header: %w", err)
	}
	entry, ok := header[tensor]
	if !ok {
		return nil, fmt.Errorf("dense: tensor %q not found", tensor)
	}
	var info tensorInfo
	if err := json.Unmarshal(entry, &info); err != nil {
		return nil, fmt.Errorf("dense: parse %q: %w", tensor, err)
	}
	if info.Dtype != "F32" {
		return nil, fmt.Errorf("dense: %q has dtype %s, want F32", tensor, info.Dtype)
	}
	if len(info.Shape) != 2 {
		return nil, fmt.Errorf("dense: %q has shape %v, want 2D", tensor, info.Shape)
	}

	out, in := info.Shape[0], info.Shape[1]
	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end > len(body) || end-start != out*in*4 {
		return nil, fmt.Errorf("dense: %q data range [%d:%d] invalid for shape %v", tensor, start, end, info.Shape)
	}

	w := make([]float32, out*in)
	for i := range w {
		w[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[start+4*i:]))
	}
	return &dense{weights: w, in: in, out: out}, nil
}

func (d *dense) apply(x []float32) []float32 {
	y := make([]float32, d.out)
	for i := range y {
		var acc float32
		for j, w := range d.weights[i*d.in : (i+1)*d.in] {
			acc += w * x[j]
		}
		y[i] = acc
	}
	return y
}
