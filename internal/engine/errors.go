package engine

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable 中间价、仓位、余额或挂单读取失败；本轮跳过报价部分。
var ErrDataUnavailable = errors.New("data unavailable")

// FatalLoopError 是逃逸出单轮迭代的错误或 panic，循环记录后退避并继续。
type FatalLoopError struct {
	Err   error
	Panic any
}

func (e *FatalLoopError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("iteration panic: %v", e.Panic)
	}
	return fmt.Sprintf("iteration failed: %v", e.Err)
}

func (e *FatalLoopError) Unwrap() error { return e.Err }

func unavailable(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDataUnavailable, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, what, err)
}
