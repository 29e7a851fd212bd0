// mockbackend stands in for the bundled lightweight backend during shell
// development: it answers the same health contract on --port, so the
// supervisor, readiness polling, and kill path can be exercised without
// the real Python sidecar.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	port := flag.Int("port", 8000, "port to listen on")
	serverType := flag.String("server-type", "lightweight", "server_type reported by /health")
	flag.Parse()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":      "ok",
			"server_type": *serverType,
		})
	})

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	log.Printf("mockbackend listening on %s", addr)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
