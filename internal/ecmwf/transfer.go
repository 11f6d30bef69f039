package ecmwf

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gosuri/uiprogress"
	"github.com/pkg/errors"
)

// ByteCount formats a size for humans.
type ByteCount int64

func (bytes ByteCount) String() string {
	switch {
	case bytes < 1<<10:
		return fmt.Sprintf("%dB", bytes)
	case bytes < 1<<20:
		return fmt.Sprintf("%dKiB", bytes>>10)
	case bytes < 1<<30:
		return fmt.Sprintf("%dMiB", bytes>>20)
	default:
		return fmt.Sprintf("%dGiB", bytes>>30)
	}
}

// download copies the result file to target. The partial file is removed on
// failure.
func (c *Client) download(ctx context.Context, r *Result, target string) (err error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Href, nil)
	if err != nil {
		return errors.Wrap(err, "invalid result href")
	}
	res, err := c.httpCli.Do(hreq)
	if err != nil {
		return errors.Wrap(err, "could not fetch result")
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return errors.Errorf("HTTP error when fetching result: %d", res.StatusCode)
	}

	f, err := os.Create(target)
	if err != nil {
		return errors.Wrap(err, "could not create target")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "could not close target")
		}
		if err != nil {
			os.Remove(target)
		}
	}()

	var w io.Writer = f
	if c.progress && r.Size > 0 {
		p := uiprogress.New()
		bar := p.AddBar(int(r.Size)).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return target
		})
		p.Start()
		defer p.Stop()
		w = &progressWriter{w: f, bar: bar}
	}

	c.logger.Info("Transferring", "target", target, "size", ByteCount(r.Size))
	n, err := io.Copy(w, res.Body)
	if err != nil {
		return errors.Wrapf(err, "transfer to %q interrupted after %s", target, ByteCount(n))
	}
	if r.Size > 0 && n != r.Size {
		return errors.Errorf("transfer to %q incomplete: got %d bytes, want %d", target, n, r.Size)
	}
	c.logger.Info("Transfer complete", "target", target, "size", ByteCount(n))
	return nil
}

type progressWriter struct {
	w   io.Writer
	bar *uiprogress.Bar
	n   int
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.n += n
	pw.bar.Set(pw.n)
	return n, err
}
