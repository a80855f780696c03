package ai

import (
	"fmt"
	"strings"

	"pomelo/internal/model"
)

// State 单次请求的组装状态
type State int

const (
	StateIdle       State = iota // 未开始
	StateSending                 // 请求已发出，尚未收到片段
	StateStreaming               // 正在接收增量片段
	StateAssembling              // 片段接收完毕，正在组装
	StateCompleted               // 终态：组装出完整回复
	StateFailed                  // 终态：请求失败
)

// String 状态名
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateAssembling:
		return "assembling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StreamInterruptedError 流在完整回复组装完成前中断
// Partial 保留中断前已接收的文本，调用方可以展示并标注不完整
type StreamInterruptedError struct {
	Partial string
	Err     error
}

// Error 实现 error 接口
func (e *StreamInterruptedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stream interrupted after %d bytes: %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream ended without completion after %d bytes", len(e.Partial))
}

// Unwrap 返回底层错误
func (e *StreamInterruptedError) Unwrap() error { return e.Err }

// AssembledResponse 组装完成的回复
type AssembledResponse struct {
	Content      string
	FinishReason string
	Usage        *model.TokenUsage
}

// Assembler 把流式增量片段组装成完整回复
// 驱动 idle → sending → streaming → assembling → completed/failed 状态机，
// 终态不可离开，非法转移一律拒绝；单个请求单 goroutine 使用，不做并发保护
type Assembler struct {
	state        State
	buf          strings.Builder
	finishReason string
	usage        *model.TokenUsage
	finalSeen    bool
}

// NewAssembler 创建组装器，初始为 idle
func NewAssembler() *Assembler {
	return &Assembler{state: StateIdle}
}

// State 当前状态
func (a *Assembler) State() State { return a.state }

// Partial 已接收的文本
func (a *Assembler) Partial() string { return a.buf.String() }

// Start 标记请求已发出
func (a *Assembler) Start() error {
	if a.state != StateIdle {
		return fmt.Errorf("cannot start assembler in state %s", a.state)
	}
	a.state = StateSending
	return nil
}

// Push 追加一个增量片段，返回当前累计的部分文本（用于实时渲染）
func (a *Assembler) Push(delta string) (string, error) {
	if a.state != StateSending && a.state != StateStreaming {
		return "", fmt.Errorf("cannot push chunk in state %s", a.state)
	}
	a.state = StateStreaming
	a.buf.WriteString(delta)
	return a.buf.String(), nil
}

// Complete 记录结束片段携带的元信息
// 只有收到过结束片段，Finalize 才能组装出完整回复
func (a *Assembler) Complete(finishReason string, usage *model.TokenUsage) error {
	if a.state != StateSending && a.state != StateStreaming {
		return fmt.Errorf("cannot complete assembler in state %s", a.state)
	}
	a.state = StateStreaming
	a.finishReason = finishReason
	a.usage = usage
	a.finalSeen = true
	return nil
}

// Finalize 结束接收并组装完整回复
// 流在结束片段之前断开时进入 failed，错误里保留已接收的部分文本
func (a *Assembler) Finalize() (*AssembledResponse, error) {
	if a.state != StateSending && a.state != StateStreaming {
		return nil, fmt.Errorf("cannot finalize assembler in state %s", a.state)
	}
	a.state = StateAssembling

	if !a.finalSeen {
		a.state = StateFailed
		return nil, &StreamInterruptedError{Partial: a.buf.String()}
	}

	a.state = StateCompleted
	return &AssembledResponse{
		Content:      a.buf.String(),
		FinishReason: a.finishReason,
		Usage:        a.usage,
	}, nil
}

// Fail 标记请求失败
// 返回应当上报给调用方的错误：已收到部分文本时包上 StreamInterruptedError
func (a *Assembler) Fail(err error) error {
	if a.state == StateCompleted || a.state == StateFailed {
		return err
	}
	a.state = StateFailed
	if a.buf.Len() > 0 {
		return &StreamInterruptedError{Partial: a.buf.String(), Err: err}
	}
	return err
}
