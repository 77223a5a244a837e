package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// 配置键
const (
	KeyDatabaseRoot       = "database.root"
	KeyDatabaseIgnoreFile = "database.ignore_file"
	KeyCacheEnabled       = "cache.enabled"
	KeyCacheWatch         = "cache.watch"
	KeyDefExtensions      = "definitions.extensions"
	KeyDefConcurrency     = "definitions.concurrency"
	KeyLogLevel           = "log.level"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		// 否则按优先级搜索
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .mloader
		viper.AddConfigPath(".mloader")
		// 3. 用户主目录下的 .mloader
		viper.AddConfigPath(filepath.Join(home, ".mloader"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (MLOADER_DATABASE_ROOT 等)
	viper.SetEnvPrefix("MLOADER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，仍然可以用默认值和环境变量
		// 但如果是配置文件格式错，那就是错
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Debug("no config file found, using defaults and environment")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		slog.Debug("using config file", slog.String("path", viper.ConfigFileUsed()))
	}

	return nil
}

func setDefaults() {
	// 数据库默认值
	viper.SetDefault(KeyDatabaseRoot, ".")
	viper.SetDefault(KeyDatabaseIgnoreFile, false)

	// 缓存默认关闭
	viper.SetDefault(KeyCacheEnabled, false)
	viper.SetDefault(KeyCacheWatch, false)

	// 定义文档
	viper.SetDefault(KeyDefExtensions, []string{".yml", ".yaml", ".json", ".jsonc", ".cbor"})
	viper.SetDefault(KeyDefConcurrency, 4)

	viper.SetDefault(KeyLogLevel, "info")
}

// LogLevel 把 log.level 转成 slog.Level，无法识别时返回 info
func LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString(KeyLogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}
