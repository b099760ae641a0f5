package util

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
)

// Gzip compresses data with gzip at default compression.
func Gzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Gunzip decompresses gzip data.
func Gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// GzipBase64 compresses data and encodes the result as standard base64. Used
// by the browser-extension export format.
func GzipBase64(data []byte) (string, error) {
	gz, err := Gzip(data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(gz), nil
}

// GunzipBase64 is the inverse of GzipBase64.
func GunzipBase64(s string) ([]byte, error) {
	gz, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return Gunzip(gz)
}
