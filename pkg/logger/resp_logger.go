package logger

import "net/http"

// ResponseLogger records the status code and body size written through it.
type ResponseLogger struct {
	w      http.ResponseWriter
	status int
	size   int
	wrote  bool
}

func New(w http.ResponseWriter) *ResponseLogger {
	return &ResponseLogger{w: w, status: http.StatusOK}
}

func (l *ResponseLogger) WriteHeader(code int) {
	if l.wrote {
		return
	}
	l.wrote = true
	l.status = code
	l.w.WriteHeader(code)
}

func (l *ResponseLogger) Write(b []byte) (int, error) {
	l.wrote = true
	n, err := l.w.Write(b)
	l.size += n
	return n, err
}

func (l *ResponseLogger) Header() http.Header {
	return l.w.Header()
}

func (l *ResponseLogger) Status() int {
	return l.status
}

func (l *ResponseLogger) Size() int {
	return l.size
}

// Written reports whether a header or body has been sent.
func (l *ResponseLogger) Written() bool {
	return l.wrote
}
