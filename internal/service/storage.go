package service

import (
	"context"
	"io"
)

// StoredFile identifies an object written to file storage.
type StoredFile struct {
	Path string
	URL  string
	Size int64
}

// FileStorage abstracts the object store holding document binaries.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (StoredFile, error)
	Remove(ctx context.Context, path string) error
	PublicURL(path string) string
}

// ProgressFunc receives coarse upload progress in bytes.
type ProgressFunc func(sent, total int64)

// progressReader reports progress at each quarter of the payload.
type progressReader struct {
	reader  io.Reader
	total   int64
	sent    int64
	quarter int64
	report  ProgressFunc
}

func newProgressReader(reader io.Reader, total int64, report ProgressFunc) io.Reader {
	if report == nil || total <= 0 {
		return reader
	}
	return &progressReader{reader: reader, total: total, report: report}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	p.sent += int64(n)
	for p.quarter < 4 && p.sent*4 >= p.total*(p.quarter+1) {
		p.quarter++
		p.report(min(p.sent, p.total), p.total)
	}
	return n, err
}
