package local

// meanPool averages the hidden states of unmasked tokens for each row of a
// [size, seqLen, dim] tensor. Rows with no unmasked tokens pool to zero.
func meanPool(hidden []float32, b batch, dim int64) [][]float32 {
	out := make([][]float32, b.size)
	for row := range b.size {
		vec := make([]float32, dim)
		var n float32
		for pos := range b.seqLen {
			if b.attentionMask[row*b.seqLen+pos] == 0 {
				continue
			}
			tok := hidden[(row*b.seqLen+pos)*dim:][:dim]
			for d, h := range tok {
				vec[d] += h
			}
			n++
		}
		if n > 0 {
			for d := range vec {
				vec[d] /= n
			}
		}
		out[row] = vec
	}
	return out
}
