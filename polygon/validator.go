package polygon

// Validator 自交检测器
// 主算法为非相邻边暴力求交，可在构造时注入扫描线兜底算法
type Validator struct {
	backstop func(Ring) []Vertex
}

type ValidatorOption func(*Validator)

// WithBackstop 注入兜底检测算法
func WithBackstop(fn func(Ring) []Vertex) ValidatorOption {
	return func(v *Validator) {
		v.backstop = fn
	}
}

// WithSweepBackstop 注入扫描线兜底检测
func WithSweepBackstop() ValidatorOption {
	return WithBackstop(FindKinksSweep)
}

func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check 检测顶点环自交
// 主算法报零时才咨询兜底算法，主算法的阳性结果直接采信
func (v *Validator) Check(r Ring) (bool, []Vertex) {
	if len(r) < 3 {
		return false, nil
	}
	kinks := FindKinks(r)
	if len(kinks) == 0 && v.backstop != nil {
		kinks = v.backstop(r)
	}
	return len(kinks) > 0, kinks
}
