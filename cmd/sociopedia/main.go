// Command sociopedia はAPIサーバー、孤立画像の掃除ワーカー、マイグレーション、
// 端末クライアントを1つのバイナリで提供する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/sociopedia/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sociopedia: %v\n", err)
		os.Exit(1)
	}
}
