package identity

import "go.uber.org/zap"

// None never authenticates and adds no credentials to requests.
type None struct {
	*Base
}

var _ Strategy = (*None)(nil)

func NewNone(l *zap.Logger) *None {
	return &None{Base: NewBase(ModeNone, nil, l)}
}
