package impl

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/visionex-project/comicex/comic/impl/record"
	"github.com/visionex-project/comicex/comic/impl/source"
	"github.com/visionex-project/comicex/pkg/utils"
)

// Run translates every page of src with at most Workers pages in flight and closes src.
// Results are indexed by page position, whatever order pages finish in. A failed page is
// reported in its result and does not stop the others; the returned error is set only when
// the whole run could not complete.
func (p *Pipeline) Run(ctx context.Context, src source.Source) (results []PageResult, err error) {
	defer func() {
		err = WithCleanup(err, src.Close())
	}()

	runID := p.startRun(ctx)
	results = make([]PageResult, src.PageCount())

	group := new(errgroup.Group)
	group.SetLimit(p.options.Workers)
	for i := range results {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = PageResult{Index: i, Name: src.Name(i), Err: err}
				return err
			}
			results[i] = p.translateSourcePage(ctx, src, i)
			p.savePage(ctx, runID, results[i])
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return results, fmt.Errorf("translation was interrupted: %w", err)
	}

	failed := utils.Sum(results, func(result PageResult) int {
		if result.Err != nil {
			return 1
		}
		return 0
	})
	log.Printf("Translated %d of %d pages", len(results)-failed, len(results))
	return results, nil
}

func (p *Pipeline) translateSourcePage(ctx context.Context, src source.Source, index int) PageResult {
	result := PageResult{Index: index, Name: src.Name(index)}
	output := fmt.Sprintf("%04d.png", index)
	log.Printf("Translating %s --> %s", result.Name, output)

	img, err := src.RenderPage(index)
	if err != nil {
		result.Err = &InputError{Page: result.Name, Err: err}
		log.Printf("Failed to read page: %v", result.Err)
		return result
	}

	outcome, err := p.TranslatePage(ctx, img)
	if err != nil {
		result.Err = fmt.Errorf("failed to translate page %s: %w", result.Name, err)
		log.Printf("Failed to translate page: %v", err)
		return result
	}
	result.Bubbles = len(outcome.Bubbles)
	result.Regions = len(outcome.Regions)
	result.Overflows = outcome.Overflows

	translated, err := encodePNG(outcome.Translated)
	if err != nil {
		result.Err = fmt.Errorf("failed to encode page %s: %w", result.Name, err)
		return result
	}
	if err := p.storage.Client.SaveBytes(ctx, p.storage.Output, output, translated); err != nil {
		result.Err = fmt.Errorf("failed to save page %s: %w", result.Name, err)
		log.Printf("Failed to save page: %v", err)
		return result
	}
	result.Output = output

	if p.options.KeepCleaned {
		p.saveImage(ctx, p.storage.Output, fmt.Sprintf("clean/%04d.png", index), outcome.Cleaned)
	}
	if p.options.Debug {
		p.saveImage(ctx, p.storage.Output, fmt.Sprintf("debug/%04d.png", index), debugOverlay(img, outcome.Bubbles, outcome.Regions))
	}
	if p.storage.Mirror != nil {
		p.mirror(ctx, index, img, translated)
	}
	return result
}

// saveImage writes an auxiliary image. Failures are logged only.
func (p *Pipeline) saveImage(ctx context.Context, bucket string, object string, img image.Image) {
	data, err := encodePNG(img)
	if err == nil {
		err = p.storage.Client.SaveBytes(ctx, bucket, object, data)
	}
	if err != nil {
		log.Printf("Failed to save %s: %v", object, err)
	}
}

func (p *Pipeline) mirror(ctx context.Context, index int, before image.Image, after []byte) {
	currentTimestamp := time.Now().UTC().Unix()
	prefix := fmt.Sprintf("page-%d-%s-%04d", currentTimestamp, p.options.TargetLanguage, index)

	original, err := encodePNG(before)
	if err == nil {
		err = p.storage.Mirror.SaveBytes(ctx, p.storage.MirrorBucket, prefix+"-before.png", original)
	}
	if err == nil {
		err = p.storage.Mirror.SaveBytes(ctx, p.storage.MirrorBucket, prefix+"-after.png", after)
	}
	if err != nil {
		log.Printf("Failed to mirror page %d: %v", index, err)
	}
}

func (p *Pipeline) startRun(ctx context.Context) int64 {
	if p.ledger == nil {
		return 0
	}
	runID, err := p.ledger.StartRun(ctx, record.Run{
		Input:          p.options.Input,
		SourceLanguage: p.options.SourceLanguage,
		TargetLanguage: p.options.TargetLanguage,
	})
	if err != nil {
		log.Printf("Failed to start run in ledger: %v", err)
	}
	return runID
}

func (p *Pipeline) savePage(ctx context.Context, runID int64, result PageResult) {
	if p.ledger == nil || runID == 0 {
		return
	}
	page := record.Page{
		Index:     result.Index,
		Name:      result.Name,
		Output:    result.Output,
		Status:    record.STATUS_TRANSLATED,
		Bubbles:   result.Bubbles,
		Regions:   result.Regions,
		Overflows: len(result.Overflows),
	}
	if result.Err != nil {
		page.Status = record.STATUS_FAILED
		page.Error = result.Err.Error()
	}
	if err := p.ledger.SavePage(ctx, runID, page); err != nil {
		log.Printf("Failed to save page %s in ledger: %v", result.Name, err)
	}
}

// Failures returns the errors of the failed pages in page order.
func Failures(results []PageResult) error {
	failed := utils.Filter(results, func(result PageResult) bool {
		return result.Err != nil
	})
	return errors.Join(utils.Map(failed, func(result PageResult) error {
		return result.Err
	})...)
}
