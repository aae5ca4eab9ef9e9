package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/nao1215/ipfsprobe/internal/model"
)

// Header is the header row of a dataset file.
var Header = []string{"Original Link", "Resolved CID"}

// ReadOption configures Read.
type ReadOption func(*reader)

type reader struct {
	logger      *slog.Logger
	validateCID bool
}

// WithLogger sets the logger that reports skipped rows.
func WithLogger(logger *slog.Logger) ReadOption {
	return func(r *reader) {
		r.logger = logger
	}
}

// WithCIDValidation controls whether rows with an undecodable CID are
// skipped. It is on by default.
func WithCIDValidation(validate bool) ReadOption {
	return func(r *reader) {
		r.validateCID = validate
	}
}

// Read parses a dataset. The first row is a header and is skipped. Rows that
// do not hold exactly a link and a CID are skipped with a warning, so a
// partly damaged file still yields its usable rows.
func Read(src io.Reader, opts ...ReadOption) ([]model.SampleInput, error) {
	rd := &reader{validateCID: true}
	for _, opt := range opts {
		opt(rd)
	}
	if rd.logger == nil {
		rd.logger = slog.Default()
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.SampleInput{}, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	inputs := make([]model.SampleInput, 0)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		input, err := rd.parse(record)
		if err != nil {
			rd.logger.Warn("skipping row", "line", line, "error", err)
			continue
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

func (rd *reader) parse(record []string) (model.SampleInput, error) {
	if len(record) != 2 {
		return model.SampleInput{}, fmt.Errorf("%w: want 2 fields, got %d", ErrMalformedRow, len(record))
	}
	link := strings.TrimSpace(record[0])
	resolved := strings.TrimPrefix(strings.TrimSpace(record[1]), "/ipfs/")
	if link == "" || resolved == "" {
		return model.SampleInput{}, fmt.Errorf("%w: empty field", ErrMalformedRow)
	}
	if rd.validateCID {
		// A path below the root CID is kept as written.
		root, _, _ := strings.Cut(resolved, "/")
		if _, err := cid.Decode(root); err != nil {
			return model.SampleInput{}, fmt.Errorf("%w: invalid CID %q: %w", ErrMalformedRow, resolved, err)
		}
	}
	return model.SampleInput{OriginalLink: link, ResolvedCID: resolved}, nil
}

// ReadFile reads the dataset at path.
func ReadFile(path string, opts ...ReadOption) ([]model.SampleInput, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	inputs, err := Read(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inputs, nil
}

// Name derives a dataset name from its file name: the part before the first
// dot or underscore, e.g. "en" for "en.wikipedia-on-ipfs.org_links_1_CID.csv".
func Name(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexAny(base, "._"); i > 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Write writes inputs as a dataset file, header first.
func Write(dst io.Writer, inputs []model.SampleInput) error {
	w := csv.NewWriter(dst)
	if err := w.Write(Header); err != nil {
		return err
	}
	for _, in := range inputs {
		if err := w.Write([]string{in.OriginalLink, in.ResolvedCID}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadLinks reads a plain list of links, one per line. Blank lines and lines
// starting with '#' are ignored.
func ReadLinks(src io.Reader) ([]string, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read links: %w", err)
	}
	links := make([]string, 0)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links = append(links, line)
	}
	return links, nil
}
