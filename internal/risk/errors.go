package risk

import "errors"

// 계산 실패 사유
// 실패는 해당 지표(또는 슬라이스)에만 국한되고 나머지 결과는 그대로 조립됨
var (
	ErrInsufficientData       = errors.New("insufficient data")
	ErrDivisionByZero         = errors.New("division by zero")
	ErrMissingScenarioOverlap = errors.New("no portfolio data overlaps scenario window")
	ErrInvalidInput           = errors.New("invalid input")
)
