package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"apollo-supervisor/cmd/root"
	"apollo-supervisor/controllers"
	"apollo-supervisor/internal/config"
	"apollo-supervisor/internal/logger"
	"apollo-supervisor/internal/middleware"
	"apollo-supervisor/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	listenAddr  string
	noCore      bool
	stopTimeout time.Duration
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动监督进程",
	Long:  "启动核心服务和看门狗，并在HTTP接口上接受应用的启动/停止请求。收到SIGINT/SIGTERM时停止所有子进程后退出。",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx)
	},
}

/**
 * Build gin engine with middleware and all controllers
 * @param {*services.Supervisor} sup - Supervisor serving the API
 * @param {string} mode - Gin mode (debug/release/test)
 * @returns {*gin.Engine} Engine ready to serve
 */
func NewRouter(sup *services.Supervisor, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.AccessLog())
	router.Use(middleware.MetricsMiddleware())

	// 前端与监督进程不同源，/api/*允许跨域
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	apiCors := cors.New(corsCfg)
	router.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			apiCors(c)
			return
		}
		c.Next()
	})

	controllers.NewAPIController(sup).RegisterRoutes(router)
	controllers.NewSupervisorController(sup).RegisterRoutes(router)
	return router
}

/**
 * Run the supervisor until ctx is cancelled
 * @param {context.Context} ctx - Cancelled by SIGINT/SIGTERM
 * @returns {error} Listen error, nil after a clean shutdown
 * @description
 * - Starts core services and the watchdog
 * - Watches the config file, log level changes apply immediately
 * - On shutdown stops the HTTP server first, then all supervised processes
 */
func runServer(ctx context.Context) error {
	cfg := config.App()
	if listenAddr != "" {
		cfg.Server.Address = listenAddr
	}
	sup := services.NewSupervisor(&cfg)

	config.OnChange(sup.ApplyConfig)
	config.WatchConfig(func(err error) {
		logger.Errorf("Reload config error: %v", err)
	})

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: NewRouter(sup, cfg.Server.Mode),
	}

	if !noCore {
		logger.Info("Starting core services...")
		for _, result := range sup.StartCoreServices() {
			if result.Code != "" {
				logger.Errorf("[%s] %s", result.Name, result.Message)
			} else {
				logger.Infof("[%s] %s", result.Name, result.Message)
			}
		}
	}
	sup.StartWatchdog(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Supervisor API listening on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Errorf("HTTP server error: %v", serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP server shutdown error: %v", err)
	}
	if err := sup.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Stop supervised processes error: %v", err)
	}
	if serveErr != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Address, serveErr)
	}
	return nil
}

func init() {
	serverCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "侦听地址，覆盖配置中的server.address")
	serverCmd.Flags().BoolVar(&noCore, "no-core", false, "不自动启动核心服务")
	serverCmd.Flags().DurationVar(&stopTimeout, "shutdown-timeout", 30*time.Second, "退出时等待子进程停止的最长时间")
	root.RootCmd.AddCommand(serverCmd)

	serverCmd.Example = `  apollo-supervisor server
  apollo-supervisor server --config ./config.yaml --listen :5500`
}
