// Package server exposes the shell's loopback IPC surface. The desktop
// webview calls it the way the old Tauri frontend called invoke(): port
// lookup, readiness state, file writes, and forwarded dialog requests.
package server

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dipperhq/dippershell/internal/fsops"
	"github.com/dipperhq/dippershell/internal/lifecycle"
	"github.com/dipperhq/dippershell/internal/metrics"
)

// Router provides the embeddable IPC handlers.
// Endpoints:
//
//	GET  {basePath}/shell/port
//	GET  {basePath}/shell/ready
//	POST {basePath}/shell/fs/write          body: {path, content}
//	POST {basePath}/shell/fs/unique-name    body: {base_path, name}
//	POST {basePath}/shell/dialog/files      body: {title, filter_set}
//	POST {basePath}/shell/dialog/folder     body: {title}
//	POST {basePath}/shell/dialog/save       body: {default_name}
//	GET  {basePath}/metrics
type Router struct {
	coord    *lifecycle.Coordinator
	dialogs  fsops.Dialogs
	basePath string
}

// NewRouter constructs a Router. dialogs may be nil; dialog routes then
// report the native layer as unavailable.
func NewRouter(coord *lifecycle.Coordinator, dialogs fsops.Dialogs, basePath string) *Router {
	if dialogs == nil {
		dialogs = fsops.Unavailable{}
	}
	return &Router{coord: coord, dialogs: dialogs, basePath: basePath}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server/mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/shell/port", r.handlePort)
	group.GET("/shell/ready", r.handleReady)
	group.POST("/shell/fs/write", r.handleWrite)
	group.POST("/shell/fs/unique-name", r.handleUniqueName)
	group.POST("/shell/dialog/files", r.handlePickFiles)
	group.POST("/shell/dialog/folder", r.handlePickFolder)
	group.POST("/shell/dialog/save", r.handlePickSave)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// Serve binds addr (loopback only) and serves the IPC API until the server
// is shut down. The bound address is returned so callers can hand an
// ephemeral port to the webview.
func Serve(addr string, r *Router) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	srv := &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	return srv, ln.Addr(), nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

func (r *Router) handlePort(c *gin.Context) {
	port, ok := r.coord.State().Port()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, errorResp{Error: "backend port not initialized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"port": port})
}

func (r *Router) handleReady(c *gin.Context) {
	resp := gin.H{
		"ready":   r.coord.IsReady(),
		"healthy": r.coord.Healthy(),
	}
	if port, ok := r.coord.State().Port(); ok {
		resp["port"] = port
	}
	c.JSON(http.StatusOK, resp)
}

type writeReq struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (r *Router) handleWrite(c *gin.Context) {
	var req writeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Path == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "path required"})
		return
	}
	if err := fsops.WriteFile(req.Path, []byte(req.Content)); err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type uniqueNameReq struct {
	BasePath string `json:"base_path"`
	Name     string `json:"name"`
}

func (r *Router) handleUniqueName(c *gin.Context) {
	var req uniqueNameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.BasePath == "" || req.Name == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "base_path and name required"})
		return
	}
	name, err := fsops.UniqueName(req.BasePath, req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

type pickFilesReq struct {
	Title     string `json:"title"`
	FilterSet string `json:"filter_set"` // audio, predictions, text, json, model
}

func filtersFor(set string) []fsops.Filter {
	switch set {
	case "predictions":
		return fsops.PredictionFilters
	case "text":
		return fsops.TextFilters
	case "json":
		return fsops.JSONFilters
	case "model":
		return fsops.ModelFilters
	default:
		return fsops.AudioFilters
	}
}

func (r *Router) handlePickFiles(c *gin.Context) {
	var req pickFilesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	paths, err := r.dialogs.PickFiles(req.Title, filtersFor(req.FilterSet))
	if r.dialogDone(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"paths": paths})
}

func (r *Router) handlePickFolder(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	path, err := r.dialogs.PickFolder(req.Title)
	if r.dialogDone(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (r *Router) handlePickSave(c *gin.Context) {
	var req struct {
		DefaultName string `json:"default_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	path, err := r.dialogs.PickSave(req.DefaultName, fsops.SaveFilters(req.DefaultName))
	if r.dialogDone(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

// dialogDone writes the error response for a failed dialog call and
// reports whether the request is finished. User cancellation maps to 409
// so the UI can treat it as a non-event rather than a failure.
func (r *Router) dialogDone(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fsops.ErrCanceled) {
		c.JSON(http.StatusConflict, errorResp{Error: err.Error()})
		return true
	}
	c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
	return true
}
