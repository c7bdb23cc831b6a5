package trainer

// ConfusionMatrix returns the 2x2 matrix [[tn, fp], [fn, tp]], rows indexed
// by actual label, columns by prediction.
func ConfusionMatrix(labels, preds []int) [][]int {
	m := [][]int{{0, 0}, {0, 0}}
	for i := range labels {
		m[labels[i]][preds[i]]++
	}
	return m
}

// BinaryF1 computes the F1 score of the positive class. Degenerate cases
// (no positive predictions or no positive labels) score 0.
func BinaryF1(labels, preds []int) float64 {
	var tp, fp, fn int
	for i := range labels {
		switch {
		case labels[i] == 1 && preds[i] == 1:
			tp++
		case labels[i] == 0 && preds[i] == 1:
			fp++
		case labels[i] == 1 && preds[i] == 0:
			fn++
		}
	}
	if tp == 0 {
		return 0
	}
	precision := float64(tp) / float64(tp+fp)
	recall := float64(tp) / float64(tp+fn)
	return 2 * precision * recall / (precision + recall)
}
