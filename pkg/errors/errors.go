package errors

import "errors"

// ErrFinalState 记录已进入终态（审批通过 / 驳回），不允许再次流转
var ErrFinalState = errors.New("记录已处于终态，不能再变更")

// ErrInvalidTransition 不在状态机允许范围内的流转
var ErrInvalidTransition = errors.New("不允许的状态流转")
