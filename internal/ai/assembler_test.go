package ai

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"pomelo/internal/model"
)

func TestAssembler_HappyPath(t *testing.T) {
	Convey("组装器把增量片段拼成完整回复", t, func() {
		asm := NewAssembler()
		So(asm.State(), ShouldEqual, StateIdle)

		So(asm.Start(), ShouldBeNil)
		So(asm.State(), ShouldEqual, StateSending)

		partial, err := asm.Push("He")
		So(err, ShouldBeNil)
		So(partial, ShouldEqual, "He")
		So(asm.State(), ShouldEqual, StateStreaming)

		partial, err = asm.Push("llo")
		So(err, ShouldBeNil)
		So(partial, ShouldEqual, "Hello")

		usage := &model.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}
		So(asm.Complete("stop", usage), ShouldBeNil)

		resp, err := asm.Finalize()
		So(err, ShouldBeNil)
		So(asm.State(), ShouldEqual, StateCompleted)
		So(resp.Content, ShouldEqual, "Hello")
		So(resp.FinishReason, ShouldEqual, "stop")
		So(resp.Usage, ShouldEqual, usage)
	})
}

func TestAssembler_Interrupted(t *testing.T) {
	Convey("缺少结束片段时 Finalize 报中断错误并保留部分文本", t, func() {
		asm := NewAssembler()
		So(asm.Start(), ShouldBeNil)
		_, err := asm.Push("partial ans")
		So(err, ShouldBeNil)

		resp, err := asm.Finalize()
		So(resp, ShouldBeNil)
		So(asm.State(), ShouldEqual, StateFailed)

		var interrupted *StreamInterruptedError
		So(errors.As(err, &interrupted), ShouldBeTrue)
		So(interrupted.Partial, ShouldEqual, "partial ans")
	})

	Convey("Fail 在收到过文本时包上中断错误", t, func() {
		asm := NewAssembler()
		So(asm.Start(), ShouldBeNil)
		_, err := asm.Push("some text")
		So(err, ShouldBeNil)

		cause := errors.New("connection reset")
		got := asm.Fail(cause)
		So(asm.State(), ShouldEqual, StateFailed)

		var interrupted *StreamInterruptedError
		So(errors.As(got, &interrupted), ShouldBeTrue)
		So(interrupted.Partial, ShouldEqual, "some text")
		So(errors.Is(got, cause), ShouldBeTrue)
	})

	Convey("Fail 在没有文本时原样返回底层错误", t, func() {
		asm := NewAssembler()
		So(asm.Start(), ShouldBeNil)

		cause := errors.New("dial failed")
		So(asm.Fail(cause), ShouldEqual, cause)
		So(asm.State(), ShouldEqual, StateFailed)
	})
}

func TestAssembler_InvalidTransitions(t *testing.T) {
	Convey("非法状态转移被拒绝", t, func() {
		Convey("未 Start 不能 Push", func() {
			asm := NewAssembler()
			_, err := asm.Push("x")
			So(err, ShouldNotBeNil)
			So(asm.State(), ShouldEqual, StateIdle)
		})

		Convey("重复 Start 被拒绝", func() {
			asm := NewAssembler()
			So(asm.Start(), ShouldBeNil)
			So(asm.Start(), ShouldNotBeNil)
		})

		Convey("终态之后 Push 和 Finalize 都被拒绝", func() {
			asm := NewAssembler()
			So(asm.Start(), ShouldBeNil)
			So(asm.Complete("stop", nil), ShouldBeNil)
			_, err := asm.Finalize()
			So(err, ShouldBeNil)

			_, err = asm.Push("late chunk")
			So(err, ShouldNotBeNil)
			_, err = asm.Finalize()
			So(err, ShouldNotBeNil)
			So(asm.State(), ShouldEqual, StateCompleted)
		})

		Convey("未 Start 不能 Finalize", func() {
			asm := NewAssembler()
			_, err := asm.Finalize()
			So(err, ShouldNotBeNil)
		})
	})
}

func TestAssembler_NoChunks(t *testing.T) {
	Convey("一个片段都没有时的收尾", t, func() {
		Convey("有结束片段则组装出空内容", func() {
			asm := NewAssembler()
			So(asm.Start(), ShouldBeNil)
			So(asm.Complete("stop", nil), ShouldBeNil)

			resp, err := asm.Finalize()
			So(err, ShouldBeNil)
			So(resp.Content, ShouldEqual, "")
			So(resp.FinishReason, ShouldEqual, "stop")
		})

		Convey("没有结束片段则报中断，部分文本为空", func() {
			asm := NewAssembler()
			So(asm.Start(), ShouldBeNil)

			_, err := asm.Finalize()
			var interrupted *StreamInterruptedError
			So(errors.As(err, &interrupted), ShouldBeTrue)
			So(interrupted.Partial, ShouldEqual, "")
		})
	})
}
