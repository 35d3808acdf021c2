package dashboard

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Dev-PGVAA/tg-group-bot/internal/supervisor"
)

const writeWait = 10 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type logFile struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func isLogName(name string) bool {
	return strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".log.gz")
}

// logPath resolves a file name inside the log directory, rejecting anything
// that is not a plain log file name.
func (s *Server) logPath(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || !isLogName(name) {
		return "", false
	}
	return filepath.Join(s.bots.LogDir(), name), true
}

func (s *Server) listLogs(c *gin.Context) {
	entries, err := os.ReadDir(s.bots.LogDir())
	if err != nil && !os.IsNotExist(err) {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}

	files := []logFile{}
	for _, e := range entries {
		if e.IsDir() || !isLogName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{Name: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })
	c.JSON(http.StatusOK, files)
}

func (s *Server) readLog(c *gin.Context) {
	path, ok := s.logPath(c.Param("file"))
	if !ok {
		jsonError(c, http.StatusBadRequest, "invalid log file name")
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		jsonError(c, http.StatusNotFound, "File not found")
		return
	}
	if strings.HasSuffix(path, ".gz") {
		c.FileAttachment(path, filepath.Base(path))
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.File(path)
}

// streamLog sends the last lines of a log over a websocket, then every
// line appended to it until the client goes away.
func (s *Server) streamLog(c *gin.Context) {
	path, ok := s.logPath(c.Param("file"))
	if !ok || strings.HasSuffix(path, ".gz") {
		jsonError(c, http.StatusBadRequest, "invalid log file name")
		return
	}
	if _, err := os.Stat(path); err != nil {
		jsonError(c, http.StatusNotFound, "File not found")
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.followLog(ctx, path, func(line string) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, []byte(line))
	}); err != nil {
		s.logger.Debug("Log stream ended", "file", filepath.Base(path), "error", err)
	}
}

// followLog emits the configured tail of path and then appended lines as
// they are written. A truncated file is re-read from the start.
func (s *Server) followLog(ctx context.Context, path string, emit func(string) error) error {
	tail, err := supervisor.TailFile(path, s.cfg.Supervisor.TailLines)
	if err != nil {
		return err
	}
	for _, line := range tail {
		if err := emit(line); err != nil {
			return err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return err
	}

	var partial string
	readNew := func() error {
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.Size() < offset {
			offset, partial = 0, ""
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return err
		}
		r := bufio.NewReader(f)
		for {
			chunk, err := r.ReadString('\n')
			offset += int64(len(chunk))
			if err != nil {
				partial += chunk
				return nil
			}
			line := strings.TrimRight(partial+chunk, "\r\n")
			partial = ""
			if err := emit(line); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if err := readNew(); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
