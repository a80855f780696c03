package tokenizer

import (
	"strings"
	"unicode"

	"github.com/go-ego/gse"
)

// Estimator token 数量估算接口
// 对话层只关心估算结果，便于在测试中替换为固定计数的实现
type Estimator interface {
	Estimate(text string) int
}

// TextEstimator 基于 gse 分词的 token 估算器
// 中英文混合文本按词边界估算比单纯按字符估算更接近模型的真实计数
type TextEstimator struct {
	seg *gse.Segmenter
}

// New 创建 token 估算器
// gse 初始化失败时降级为按字符估算（约4字符1个token）
func New() *TextEstimator {
	seg, err := gse.New()
	if err != nil {
		return &TextEstimator{}
	}
	return &TextEstimator{seg: &seg}
}

// Estimate 估算文本的 token 数量
// 估算是确定性的：相同输入总是得到相同结果
func (e *TextEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}

	if e.seg == nil {
		return charEstimate(text)
	}

	total := 0
	for _, word := range e.seg.Cut(text, false) {
		total += wordTokens(word)
	}
	if total == 0 {
		return charEstimate(text)
	}
	return total
}

// wordTokens 估算单个分词的 token 数量
// 汉字通常每字一个 token，长英文单词会被模型切成多个子词
func wordTokens(word string) int {
	word = strings.TrimSpace(word)
	if word == "" {
		return 0
	}

	han := 0
	other := 0
	for _, r := range word {
		if unicode.Is(unicode.Han, r) {
			han++
		} else {
			other++
		}
	}

	tokens := han
	if other > 0 {
		tokens += (other + 3) / 4
	}
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// charEstimate 降级估算：约4个字符1个token
func charEstimate(text string) int {
	n := (len(text) + 3) / 4
	if n == 0 {
		n = 1
	}
	return n
}
