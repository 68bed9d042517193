package utils

// Ones returns a weight vector of n ones.
func Ones(n int) []float64 {
	res := make([]float64, n)
	for i := range res {
		res[i] = 1
	}
	return res
}

// SeqInts returns the integers from lo to hi inclusive.
func SeqInts(lo, hi int) []int {
	if hi < lo {
		return nil
	}
	res := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		res = append(res, i)
	}
	return res
}
