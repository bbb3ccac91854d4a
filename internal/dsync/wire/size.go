package wire

// SizeEstimate returns a cheap, monotonic estimate of the encoded size of
// el: adding children never decreases the estimate. The Response
// Generator budgets against this estimate with its own 90% safety margin,
// so accuracy beyond "close and monotonic" is not a correctness
// requirement.
//
// The estimate approximates XML textual form (the larger of the two wire
// encodings) so the safety margin has headroom against either codec.
func SizeEstimate(el *Element) int {
	if el == nil {
		return 0
	}
	// "<Name" + "/>" or "<Name>...</Name>"
	size := 2 + len(el.Name) + 1 // "<" Name ">"
	for k, v := range el.Attrs {
		size += 2 + len(k) + len(v) // ` k="v"`
	}
	if el.Text == "" && len(el.Children) == 0 {
		size += 1 // "/" for self-closing
		return size
	}
	size += len(el.Text)
	for _, child := range el.Children {
		size += SizeEstimate(child)
	}
	size += 3 + len(el.Name) // "</Name>"
	return size
}
