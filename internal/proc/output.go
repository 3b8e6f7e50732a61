package proc

import (
	"bytes"
	"strings"
	"sync"
)

// 单行最长缓存，超过后强制输出
const maxLineLength = 64 * 1024

// lineWriter 把子进程输出切成行，每行带标签写入日志
type lineWriter struct {
	label string
	logf  func(format string, v ...interface{})
	mutex sync.Mutex
	buf   bytes.Buffer
}

func newLineWriter(label string, logf func(format string, v ...interface{})) *lineWriter {
	return &lineWriter{label: label, logf: logf}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			if w.buf.Len() > maxLineLength {
				w.emit(w.buf.String())
				w.buf.Reset()
			}
			break
		}
		w.emit(string(data[:i]))
		w.buf.Next(i + 1)
	}
	return len(p), nil
}

// Flush 输出缓存中不完整的最后一行
func (w *lineWriter) Flush() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	w.logf("[%s] %s", w.label, strings.TrimRight(line, "\r"))
}
