package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"shop-catalog/internal/config"
	"shop-catalog/internal/handler"
	"shop-catalog/internal/middleware"
	"shop-catalog/internal/pipeline"
	"shop-catalog/internal/repository"
	"shop-catalog/internal/service"
	"shop-catalog/pkg/database"
	"shop-catalog/pkg/es"
	"shop-catalog/pkg/kafka"
	"shop-catalog/pkg/log"
	"shop-catalog/pkg/storage"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、MinIO、Elasticsearch 与 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	defer database.CloseMySQL()
	if err := repository.AutoMigrate(database.DB); err != nil {
		log.Fatal("categories 表迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	var publisher service.EventPublisher = service.NopPublisher{}
	if cfg.Kafka.Enabled() {
		kafka.InitProducer(cfg.Kafka)
		defer kafka.CloseProducer()
		publisher = kafka.NewPublisher()
	} else {
		log.Warnf("未配置 Kafka brokers，分类事件不会发布，索引与快照不会同步")
	}

	// 4. 初始化 Repository 与外部适配器
	categoryRepo := repository.NewCategoryRepository(database.DB)
	categoryCache := repository.NewCategoryCache(database.RDB, cfg.Category.CacheTTL)
	categoryIndex := es.NewCategoryIndex(es.ESClient, cfg.Elasticsearch.IndexName)
	snapshots := storage.NewSnapshotBucket(storage.MinioClient, cfg.MinIO.BucketName, cfg.Category.SnapshotObject)

	// 5. 初始化 Service (依赖注入)
	categoryService := service.NewCategoryService(categoryRepo, categoryCache, publisher)
	searchService := service.NewSearchService(categoryIndex, snapshots, categoryRepo, cfg.Category.SnapshotExpiry)

	// 6. 启动后台 Kafka 消费者，负责索引同步与快照导出
	processor := pipeline.NewProcessor(categoryRepo, categoryCache, categoryIndex, snapshots)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled() {
		go func() {
			defer close(consumerDone)
			kafka.StartConsumer(consumerCtx, cfg.Kafka, processor)
		}()
	} else {
		close(consumerDone)
	}

	// 7. 按需写入演示数据
	if cfg.Category.SeedOnStartup {
		if n, err := categoryService.SeedSample(context.Background()); err != nil {
			log.Error("写入演示分类失败", err)
		} else {
			log.Infof("已写入 %d 条演示分类", n)
		}
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	metrics := middleware.NewMetrics("shop_catalog")
	r.Use(middleware.RequestLogger(), metrics.Middleware(), gin.Recovery())
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	handler.NewCategoryHandler(categoryService, searchService).Register(apiV1)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	stopConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}

	log.Info("服务已优雅关闭")
}
