package utils

import (
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// SetupTextStreamHeaders 设置纯文本流式响应头
func SetupTextStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}

// TokenWriter 返回逐个写出并立即 flush 文本片段的函数。
// After the first failed write (client gone) further tokens are dropped.
func TokenWriter(w http.ResponseWriter) func(string) {
	flusher, _ := w.(http.Flusher)
	broken := false

	return func(token string) {
		if broken {
			return
		}
		if _, err := io.WriteString(w, token); err != nil {
			broken = true
			logrus.WithError(err).Debug("client stopped reading stream")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
