// 通知サービスのエントリポイント。
// ユーザー・管理者への通知を保存し、接続中のセッションへライブ配信する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nao1215/socialhub/internal/notification"
	"github.com/nao1215/socialhub/pkg/config"
	_ "modernc.org/sqlite"
)

func main() {
	cfg, err := config.Load("notification")
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := notification.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}

	log.Printf("通知サービスを起動します: :%s", cfg.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("通知サービスの実行に失敗: %v", err)
	}
}
