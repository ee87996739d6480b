package service

// Score 返回 100*correct/total，保留一位小数并四舍五入(half-up)。
// 全程整数运算，total 为 0 时返回 0
func Score(correct, total int) float64 {
	if total <= 0 || correct <= 0 {
		return 0
	}
	if correct > total {
		correct = total
	}
	tenths := (2000*int64(correct) + int64(total)) / (2 * int64(total))
	return float64(tenths) / 10
}
