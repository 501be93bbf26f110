package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/talos/pkg/config"
	"github.com/wonny/talos/pkg/database"
	"github.com/wonny/talos/pkg/logger"
	"github.com/wonny/talos/pkg/redis"
)

// statusCmd prints the resolved configuration and checks backing services
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "설정 및 백엔드 서비스 상태 확인",
	Long: `현재 설정을 출력하고 데이터베이스/Redis 연결을 확인합니다.

Example:
  go run ./cmd/talos status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	fmt.Println("=== Talos Status ===")
	fmt.Printf("Env:      %s\n", cfg.Env)
	fmt.Printf("Mode:     %s (live=%v)\n", cfg.Trading.Mode, cfg.IsLive())
	fmt.Printf("Feed:     %s\n", cfg.Trading.FeedMode)
	fmt.Printf("Symbols:  %s\n", strings.Join(cfg.Trading.AllowedSymbols, ", "))
	fmt.Printf("Limits:   max_position=%.2f order_size=%.2f max_daily_loss=%.2f long_only=%v\n",
		cfg.Trading.MaxPosition, cfg.Trading.OrderSize, cfg.Trading.MaxDailyLoss, cfg.Trading.LongOnly)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			fmt.Printf("Database: ❌ %v\n", err)
		} else {
			defer db.Close()
			if err := db.Ping(ctx); err != nil {
				fmt.Printf("Database: ❌ %v\n", err)
			} else {
				fmt.Println("Database: ✅ connected")
			}
		}
	} else {
		fmt.Println("Database: disabled")
	}

	if cfg.Redis.Enabled {
		client, err := redis.New(cfg)
		if err != nil {
			fmt.Printf("Redis:    ❌ %v\n", err)
		} else {
			defer client.Close()
			fmt.Println("Redis:    ✅ connected")
		}
	} else {
		fmt.Println("Redis:    disabled")
	}

	log.Debug("Status check complete")
	return nil
}
