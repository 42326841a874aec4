// Package gzippedhttp provides middleware for transparent gzip handling:
// responses are compressed for clients that accept it, and gzip-encoded
// request bodies are decompressed before reaching the handlers.
package gzippedhttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// CompressedReader wraps an io.ReadCloser and decompresses its input using gzip.
type CompressedReader struct {
	r  io.ReadCloser
	zr *gzip.Reader
}

// NewCompressedReader returns a CompressedReader over the given
// gzip-compressed body.
func NewCompressedReader(requestBody io.ReadCloser) (*CompressedReader, error) {
	zr, err := gzip.NewReader(requestBody)
	if err != nil {
		return nil, err
	}

	return &CompressedReader{
		r:  requestBody,
		zr: zr,
	}, nil
}

// Read reads decompressed data from the underlying gzip stream.
func (c CompressedReader) Read(p []byte) (n int, err error) {
	return c.zr.Read(p)
}

// Close closes both the gzip reader and the underlying io.ReadCloser.
func (c *CompressedReader) Close() error {
	if err := c.r.Close(); err != nil {
		return err
	}
	return c.zr.Close()
}

// CompressedHTTPResponseWriter wraps http.ResponseWriter and compresses
// the response body using gzip.
type CompressedHTTPResponseWriter struct {
	w  http.ResponseWriter
	zw *gzip.Writer
}

// NewCompressedHTTPResponseWriter returns a writer that gzips everything
// written through it, reusing pooled gzip writers.
func NewCompressedHTTPResponseWriter(w http.ResponseWriter) *CompressedHTTPResponseWriter {
	zw := gzipWriterPool.Get().(*gzip.Writer)
	zw.Reset(w)
	return &CompressedHTTPResponseWriter{
		w:  w,
		zw: zw,
	}
}

// Close flushes the gzip stream and returns the writer to the pool.
func (c *CompressedHTTPResponseWriter) Close() error {
	err := c.zw.Close()
	if err != nil {
		return err
	}
	gzipWriterPool.Put(c.zw)
	return nil
}

// WriteHeader sets the HTTP status code for the response.
func (c *CompressedHTTPResponseWriter) WriteHeader(statusCode int) {
	if statusCode < 300 {
		c.w.Header().Set("Content-Encoding", "gzip")
	}
	c.w.WriteHeader(statusCode)
}

// Write writes gzip-compressed data to the response body.
func (c *CompressedHTTPResponseWriter) Write(p []byte) (int, error) {
	return c.zw.Write(p)
}

// Header returns the HTTP headers associated with the response.
func (c *CompressedHTTPResponseWriter) Header() http.Header {
	return c.w.Header()
}

// GzipResponse compresses the response when the client's
// "Accept-Encoding" header allows it.
func GzipResponse(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		finalResponse := response

		acceptEncoding := request.Header.Get("Accept-Encoding")
		clientAcceptsGzip := strings.Contains(acceptEncoding, "gzip")
		if clientAcceptsGzip {
			responseWithCompression := NewCompressedHTTPResponseWriter(response)
			finalResponse = responseWithCompression
			defer responseWithCompression.Close()
		}

		h.ServeHTTP(finalResponse, request)
	}

	return http.HandlerFunc(middleware)
}

// UngzipRequest decompresses gzip-encoded request bodies before passing
// the request to the next handler. Multipart uploads never arrive
// gzip-encoded, so the middleware leaves them untouched.
func UngzipRequest(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		contentEncoding := request.Header.Get("Content-Encoding")
		clientSendsGzippedData := strings.Contains(contentEncoding, "gzip")
		if clientSendsGzippedData {
			requestBodyWithCompression, err := NewCompressedReader(request.Body)
			if err != nil {
				response.WriteHeader(http.StatusInternalServerError)
				return
			}
			request.Body = requestBodyWithCompression
			defer requestBodyWithCompression.Close()
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
