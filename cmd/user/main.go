// ユーザーサービスのエントリポイント。
// ユーザー登録・ログインと、他サービス向けのユーザーディレクトリを提供する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nao1215/socialhub/internal/user"
	"github.com/nao1215/socialhub/pkg/config"
	_ "modernc.org/sqlite"
)

func main() {
	cfg, err := config.Load("user")
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := user.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("ユーザーサーバーの初期化に失敗: %v", err)
	}

	log.Printf("ユーザーサービスを起動します: :%s", cfg.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("ユーザーサービスの実行に失敗: %v", err)
	}
}
