package expivot

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/expivot-go/pkg/expivot/parser"
	"github.com/xuri/excelize/v2"
)

// Workbook is an open xlsx package. It owns the pivot registry, which is
// built on the first Pivots call and torn down by Close.
type Workbook struct {
	name    string
	path    string
	src     io.ReaderAt
	size    int64
	closer  io.Closer
	archive parser.Archive
	opts    Options
	log     logrus.FieldLogger

	mu       sync.Mutex
	registry *Registry
	discErr  error
	live     *excelize.File
	closed   bool
}

// Open opens an xlsx file. Encrypted workbooks are decrypted through
// excelize when Options.Password is set.
func Open(path string, opts Options) (*Workbook, error) {
	w := &Workbook{
		name: filepath.Base(path),
		path: path,
		opts: opts,
		log:  opts.logger().WithField("workbook", filepath.Base(path)),
	}

	zr, err := zip.OpenReader(path)
	if err == nil {
		w.closer = zr
		w.archive = parser.NewZipArchive(&zr.Reader)
		return w, nil
	}
	if !errors.Is(err, zip.ErrFormat) || opts.Password == "" {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := w.decrypt(); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return w, nil
}

// OpenReader opens an xlsx package held by r.
func OpenReader(r io.ReaderAt, size int64, opts Options) (*Workbook, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	return &Workbook{
		name:    "package",
		src:     r,
		size:    size,
		archive: parser.NewZipArchive(zr),
		opts:    opts,
		log:     opts.logger(),
	}, nil
}

// decrypt decrypts the file with excelize and indexes the plain package.
func (w *Workbook) decrypt() error {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	data, err := excelize.Decrypt(raw, &excelize.Options{Password: w.opts.Password})
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	w.src = bytes.NewReader(data)
	w.size = int64(len(data))
	w.archive = parser.NewZipArchive(zr)
	return nil
}

// Name returns the workbook file name.
func (w *Workbook) Name() string {
	return w.name
}

// Pivots returns the pivot table registry, discovering it on first use.
// A *PartialDiscoveryError is returned together with a usable registry when
// some parts were excluded; the same error is returned on every call.
func (w *Workbook) Pivots() (*Registry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if w.registry != nil {
		return w.registry, w.discErr
	}

	reg, err := discover(w.archive, w.opts, w.log, w.liveFile)
	if reg == nil {
		return nil, err
	}
	w.registry, w.discErr = reg, err
	return reg, err
}

// liveFile lazily opens the workbook with excelize for live source reads.
func (w *Workbook) liveFile() (*excelize.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if w.live != nil {
		return w.live, nil
	}

	var (
		f   *excelize.File
		err error
	)
	opts := excelize.Options{Password: w.opts.Password}
	if w.path != "" {
		f, err = excelize.OpenFile(w.path, opts)
	} else {
		f, err = excelize.OpenReader(io.NewSectionReader(w.src, 0, w.size), opts)
	}
	if err != nil {
		return nil, err
	}
	w.live = f
	return f, nil
}

// Close releases the package and drops the registry. Tables and caches
// obtained earlier stay valid; the registry itself refuses further calls.
func (w *Workbook) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	reg, live, closer := w.registry, w.live, w.closer
	w.registry, w.live = nil, nil
	w.mu.Unlock()

	// Registry calls take the registry lock before the workbook lock.
	if reg != nil {
		reg.close()
	}

	var errs []error
	if live != nil {
		errs = append(errs, live.Close())
	}
	if closer != nil {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}
