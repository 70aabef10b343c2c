package webserver

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/beamstore/beamstore/internal/database"
	"github.com/beamstore/beamstore/internal/metadata"
	"github.com/beamstore/beamstore/internal/transport"
	middlewarepkg "github.com/beamstore/beamstore/internal/webserver/middleware"
	"github.com/beamstore/beamstore/internal/webserver/service"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/logger"
	"golang.org/x/time/rate"
)

// A Controller is an Inversion Of Control pattern used to init the server package.
type Controller struct {
	Version  string
	Logger   logger.Logger
	Database database.Client
	Metadata *metadata.Store
	Service  service.Config
	//
	Transport transport.Messenger
	// UploadsPerMinute throttles the upload route per client IP.
	// Zero disables the limiter.
	UploadsPerMinute int
}

// EchoEngine instantiates the web server.
func EchoEngine(ctrl Controller) *echo.Echo {
	engine := echo.New()
	engine.HideBanner = true
	engine.Use(middlewarepkg.Logger(ctrl.Logger))

	engine.HTTPErrorHandler = middlewarepkg.NewHTTPErrorHandler(ctrl.Logger)

	//
	//
	//

	router := engine.Group("")

	// Generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	// Files
	//
	file := file{
		logger:        ctrl.Logger,
		db:            ctrl.Database,
		uploader:      service.NewUploader(ctrl.Logger, ctrl.Database, ctrl.Transport, ctrl.Metadata, ctrl.Service),
		downloader:    service.NewDownloader(ctrl.Logger, ctrl.Database, ctrl.Transport, ctrl.Metadata),
		destroyer:     service.NewDestroyer(ctrl.Logger, ctrl.Database, ctrl.Transport, ctrl.Metadata, ctrl.Service.Timeout),
		maxObjectSize: ctrl.Service.MaxObjectSize,
	}

	api := router.Group("/api", middlewarepkg.Identity())

	upload := api.Group("")
	if ctrl.UploadsPerMinute > 0 {
		upload.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(ctrl.UploadsPerMinute) / 60),
				Burst:     ctrl.UploadsPerMinute,
				ExpiresIn: 3 * time.Minute,
			}),
		}))
	}
	upload.POST("/files", file.Upload)

	api.GET("/files", file.List)
	api.GET("/files/:ident", file.Download)
	api.DELETE("/files/:ident", file.Delete)

	return engine
}

// PrintRoutes prints the Echo engine exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
