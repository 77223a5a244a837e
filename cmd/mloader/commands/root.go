package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Cjw9000-py/mloader/pkg/app"
	"github.com/Cjw9000-py/mloader/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	ML *app.App
)

var rootCmd = &cobra.Command{
	Use:   "mloader",
	Short: "mloader: virtual resource database",
	Long:  `Inspect a resource database: list logical entries, resolve assets and load typed definitions.`,
	// 【关键】PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 统一初始化 App
		var err error
		ML, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize mloader: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if ML == nil {
			return nil
		}
		return ML.Close()
	},
	SilenceUsage: true,
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 定义全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mloader/config.yaml)")

	// 2. 其余参数绑定到 Viper
	// 这样用户既可以在 yaml 里写，也可以用命令行覆盖
	rootCmd.PersistentFlags().String("root", "", "Root directory of the resource database")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("cache", false, "Share resolved resources between lookups")
	for key, flag := range map[string]string{
		config.KeyDatabaseRoot: "root",
		config.KeyLogLevel:     "log-level",
		config.KeyCacheEnabled: "cache",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Println("Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量，然后安装日志
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.LogLevel(),
	})))
}
