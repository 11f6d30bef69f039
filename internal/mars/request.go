// Package mars describes retrieval requests for the ECMWF data archive.
package mars

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Request is a flat set of archive keywords. Values are sent to the archive
// exactly as written, no validation is performed on them.
type Request map[string]string

// Keywords that address the archive rather than select data.
const (
	KeyDataset = "dataset"
	KeyTarget  = "target"
	KeyDate    = "date"
)

// Dataset returns the name of the dataset the request is submitted to.
func (r Request) Dataset() string {
	return r[KeyDataset]
}

// Target returns the path of the output file.
func (r Request) Target() string {
	return r[KeyTarget]
}

// Check reports whether the request can be submitted at all.
func (r Request) Check() error {
	if r.Dataset() == "" {
		return errors.Errorf("request has no %q keyword", KeyDataset)
	}
	if r.Target() == "" {
		return errors.Errorf("request has no %q keyword", KeyTarget)
	}
	return nil
}

// With returns a copy of the request with key set to value.
func (r Request) With(key, value string) Request {
	c := r.clone()
	c[key] = value
	return c
}

func (r Request) clone() Request {
	c := make(Request, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Keys returns the request keywords in lexical order.
func (r Request) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary returns the request keywords suitable for logging.
func (r Request) Summary() []any {
	kv := make([]any, 0, 2*len(r))
	for _, k := range r.Keys() {
		kv = append(kv, k, r[k])
	}
	return kv
}

// File is the layout of a batch request file.
type File struct {
	Requests []Request `yaml:"requests"`
}

// LoadFile reads a YAML batch of requests.
func LoadFile(path string) ([]Request, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read request file")
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrapf(err, "could not parse request file %q", path)
	}
	if len(f.Requests) == 0 {
		return nil, errors.Errorf("request file %q contains no requests", path)
	}
	for i, r := range f.Requests {
		if err := r.Check(); err != nil {
			return nil, errors.Wrapf(err, "request #%d in %q", i+1, path)
		}
	}
	return f.Requests, nil
}
