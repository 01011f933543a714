package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/semaphore"
)

// openPDF reads and validates the document. A strict open is attempted
// first; malformed but recoverable files get one retry with validation
// relaxed before the subprocess fallback takes over.
func openPDF(f *os.File) (*model.Context, []string, error) {
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err == nil {
		return pctx, nil, nil
	}
	warns := []string{fmt.Sprintf("strict pdf open failed: %v", err)}

	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return nil, warns, serr
	}
	relaxed := model.NewDefaultConfiguration()
	relaxed.ValidationMode = model.ValidationRelaxed
	pctx, err = api.ReadValidateAndOptimize(f, relaxed)
	if err != nil {
		return nil, warns, fmt.Errorf("pdf open: %w", err)
	}
	return pctx, warns, nil
}

// pageJob carries one page's raw content bytes into the reconstruction pool.
type pageJob struct {
	pageNr int
	data   []byte
	width  float64
	height float64
}

var errContentReadTimeout = errors.New("content read timed out")

// readPageContent pulls one page's content stream under the per-page budget.
// A pathological stream must not stall the whole run.
func (e *Extractor) readPageContent(ctx context.Context, pctx *model.Context, nr int) ([]byte, error) {
	return readWithBudget(ctx, e.cfg.PageTimeout, func() ([]byte, error) {
		r, err := pdfcpu.ExtractPageContent(pctx, nr)
		if err != nil {
			return nil, err
		}
		return io.ReadAll(r)
	})
}

// readWithBudget runs fn under a deadline, converting panics to errors.
func readWithBudget(ctx context.Context, budget time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	type read struct {
		data []byte
		err  error
	}
	done := make(chan read, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- read{err: fmt.Errorf("content read panicked: %v", r)}
			}
		}()
		data, err := fn()
		done <- read{data: data, err: err}
	}()

	t := time.NewTimer(budget)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return nil, fmt.Errorf("%w after %s", errContentReadTimeout, budget)
	case o := <-done:
		return o.data, o.err
	}
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	pctx, warns, err := openPDF(f)
	if err != nil {
		// Primary extractor can't open the document at all; hand the
		// bytes to the isolated subprocess path.
		e.logger.Warn("extract.pdf.open_failed", "path", path, "error", err)
		res, serr := e.extractSubprocess(ctx, path)
		res.Warnings = append(warns, res.Warnings...)
		return res, serr
	}
	if pctx.PageCount > e.cfg.MaxPages {
		e.logger.Warn("extract.pdf.page_guard", "path", path, "pages", pctx.PageCount, "max", e.cfg.MaxPages)
		res, serr := e.extractSubprocess(ctx, path)
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("page count %d exceeds guard %d, used subprocess extractor", pctx.PageCount, e.cfg.MaxPages))
		return res, serr
	}

	pageCount := pctx.PageCount
	if e.cfg.CoverPages > 0 && pageCount > e.cfg.CoverPages {
		pageCount = e.cfg.CoverPages
	}

	dims, _ := pctx.PageDims()

	// pdfcpu's context is not safe for concurrent page reads, so content
	// bytes are pulled sequentially and only reconstruction fans out.
	jobs := make([]pageJob, 0, pageCount)
	for nr := 1; nr <= pageCount; nr++ {
		job := pageJob{pageNr: nr}
		if len(dims) >= nr {
			job.width = dims[nr-1].Width
			job.height = dims[nr-1].Height
		}
		data, err := e.readPageContent(ctx, pctx, nr)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: content read failed: %v", nr, err))
			jobs = append(jobs, job)
			if errors.Is(err, errContentReadTimeout) || ctx.Err() != nil {
				// The stalled reader still holds pctx, which must not
				// be touched concurrently; the remaining pages degrade
				// to empty instead of racing it.
				for rest := nr + 1; rest <= pageCount; rest++ {
					restJob := pageJob{pageNr: rest}
					if len(dims) >= rest {
						restJob.width = dims[rest-1].Width
						restJob.height = dims[rest-1].Height
					}
					jobs = append(jobs, restJob)
					warns = append(warns, fmt.Sprintf("page %d: skipped after stalled content read", rest))
				}
				break
			}
			continue
		}
		job.data = data
		jobs = append(jobs, job)
	}

	pages := make([]Page, len(jobs))
	pageWarns := make([]string, len(jobs))
	sem := semaphore.NewWeighted(int64(e.cfg.PageConcurrency))
	var wg sync.WaitGroup

	for i := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			pages[i] = Page{PageNumber: jobs[i].pageNr}
			pageWarns[i] = fmt.Sprintf("page %d: cancelled before start", jobs[i].pageNr)
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			pages[i], pageWarns[i] = e.reconstructWithTimeout(ctx, jobs[i])
		}(i)
	}
	wg.Wait()

	for _, w := range pageWarns {
		if w != "" {
			warns = append(warns, w)
		}
	}

	res := Result{Kind: "PDF", DetectedMime: "application/pdf", Pages: pages, Warnings: warns, Method: "pdf-layout"}
	e.score(&res)
	return res, nil
}

// reconstructWithTimeout rebuilds one page's text under the per-page budget.
// A timeout degrades the page to empty text and a warning; it never aborts
// the surrounding document.
func (e *Extractor) reconstructWithTimeout(ctx context.Context, job pageJob) (Page, string) {
	page := Page{PageNumber: job.pageNr, Width: job.width, Height: job.height}
	if len(job.data) == 0 {
		return page, ""
	}

	pctx, cancel := context.WithTimeout(ctx, e.cfg.PageTimeout)
	defer cancel()

	type out struct {
		text string
	}
	done := make(chan out, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- out{}
			}
		}()
		frags := harvestFragments(job.data)
		done <- out{text: reconstructPage(frags, e.cfg.LineYTolerance, e.cfg.SpaceGap)}
	}()

	select {
	case <-pctx.Done():
		return page, fmt.Sprintf("page %d: reconstruction timed out after %s", job.pageNr, e.cfg.PageTimeout)
	case o := <-done:
		page.Text = o.text
		if page.Text != "" {
			page.Confidence = 0.9
		}
		return page, ""
	}
}
