package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "talos",
	Short: "Talos - 자동화 크립토 트레이딩 엔진",
	Long: `Talos Unified CLI

에이전트 기반 크립토 트레이딩 시스템.
시그널 버스를 통해 전략 에이전트가 발행한 트레이드 인텐트를
리스크 게이트와 메이커 우선 실행 엔진으로 처리.

Usage:
  go run ./cmd/talos [command]

Examples:
  go run ./cmd/talos api
  go run ./cmd/talos status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
