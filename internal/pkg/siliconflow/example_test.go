package siliconflow_test

import (
	"context"
	"fmt"
	"os"

	"pomelo/internal/pkg/siliconflow"
)

// ExampleNewClient 演示如何创建客户端并进行一次同步对话
func ExampleNewClient() {
	// 实际使用时应从环境变量或配置文件读取 API Key
	apiKey := os.Getenv("SILICONFLOW_API_KEY")
	if apiKey == "" {
		apiKey = "your-api-key-here" // 仅用于示例
	}

	client, err := siliconflow.NewClient(siliconflow.Config{
		APIKey: apiKey,
	})
	if err != nil {
		fmt.Printf("创建客户端失败: %v\n", err)
		return
	}

	ctx := context.Background()
	result, err := client.ChatCompletion(ctx, &siliconflow.ChatRequest{
		Model: "Qwen/Qwen2.5-7B-Instruct",
		Messages: []siliconflow.ChatMessage{
			{Role: siliconflow.RoleUser, Content: "你好，请介绍一下自己"},
		},
		MaxTokens:   1024,
		Temperature: 0.7,
	})
	if err != nil {
		fmt.Printf("调用失败: %v\n", err)
		return
	}

	fmt.Println(result.Content)
}

// ExampleClient_ChatCompletionStream 演示流式对话：增量片段按到达顺序打印
func ExampleClient_ChatCompletionStream() {
	apiKey := os.Getenv("SILICONFLOW_API_KEY")
	if apiKey == "" {
		apiKey = "your-api-key-here"
	}

	client, err := siliconflow.NewClient(siliconflow.Config{APIKey: apiKey})
	if err != nil {
		fmt.Printf("创建客户端失败: %v\n", err)
		return
	}

	ctx := context.Background()
	ch, err := client.ChatCompletionStream(ctx, &siliconflow.ChatRequest{
		Model: "Qwen/Qwen2.5-7B-Instruct",
		Messages: []siliconflow.ChatMessage{
			{Role: siliconflow.RoleUser, Content: "写一首关于秋天的短诗"},
		},
		MaxTokens:   1024,
		Temperature: 0.7,
	})
	if err != nil {
		fmt.Printf("建立流失败: %v\n", err)
		return
	}

	for chunk := range ch {
		if chunk.Err != nil {
			fmt.Printf("流中断: %v\n", chunk.Err)
			return
		}
		if chunk.Done {
			fmt.Printf("\n[结束原因: %s]\n", chunk.FinishReason)
			return
		}
		fmt.Print(chunk.Delta)
	}
}
