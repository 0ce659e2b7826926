package graceful

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// Context はSIGINT/SIGTERMを受け取るとキャンセルされるコンテキストを返す
func Context(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Printf("🛑 シグナル受信 (%s)、シャットダウンを開始します", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
