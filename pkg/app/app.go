// pkg/app/app.go
package app

import (
	"context"
	"fmt"

	"github.com/Cjw9000-py/mloader/pkg/config"
	"github.com/Cjw9000-py/mloader/pkg/database"
	"github.com/Cjw9000-py/mloader/pkg/database/cache"
	"github.com/Cjw9000-py/mloader/pkg/database/fs"
	"github.com/Cjw9000-py/mloader/pkg/definition"
	"github.com/Cjw9000-py/mloader/pkg/scanner"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	// DB 是对外使用的数据库：开启缓存时是 Cache，否则就是 FS
	DB    database.Database
	FS    *fs.Database
	Cache *cache.Database

	Databases   *database.Registry
	Definitions *definition.Registry
	Scanner     *scanner.Scanner

	watcher *cache.Watcher
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	// 1. 获取数据库根目录 (Single Source of Truth)
	root := viper.GetString(config.KeyDatabaseRoot)
	if root == "" {
		return nil, fmt.Errorf("database root not set")
	}

	// 2. 初始化存储层 (Dependency Injection)
	fsdb := fs.New(root, fs.WithIgnoreFile(viper.GetBool(config.KeyDatabaseIgnoreFile)))
	a := &App{
		DB:        fsdb,
		FS:        fsdb,
		Databases: database.NewRegistry(),
	}

	// 3. 可选的共享缓存层
	if viper.GetBool(config.KeyCacheEnabled) {
		a.Cache = cache.New(fsdb)
		a.DB = a.Cache

		if viper.GetBool(config.KeyCacheWatch) {
			w, err := a.Cache.Watch(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to watch database: %w", err)
			}
			a.watcher = w
		}
	}
	a.Databases.Activate(a.DB)

	// 4. 定义注册表和扫描器
	a.Definitions = definition.NewRegistry(
		definition.WithConcurrency(viper.GetInt(config.KeyDefConcurrency)),
	)
	a.Scanner = scanner.New(a.DB, scanner.WithExtensions(viper.GetStringSlice(config.KeyDefExtensions)...))

	return a, nil
}

// RegisterGeneric 用 definition.Generic 注册一组只在运行时才知道的类型
func (a *App) RegisterGeneric(types ...string) error {
	for _, t := range types {
		if err := a.Definitions.RegisterType(t, definition.GenericFactory); err != nil {
			return err
		}
	}
	return nil
}

// LoadDefinitions 扫描数据库并导入所有定义文档，返回文档数量
func (a *App) LoadDefinitions(ctx context.Context) (int, error) {
	paths, err := a.Scanner.Scan(ctx)
	if err != nil {
		return 0, err
	}
	if err := a.Definitions.IngestPaths(ctx, a.DB, paths); err != nil {
		return 0, err
	}
	return len(paths), nil
}

// Close 停止文件监听并卸载数据库
func (a *App) Close() error {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			return err
		}
	}
	a.Databases.Clear()
	return a.DB.Unload()
}
