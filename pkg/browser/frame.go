package browser

import (
	"context"
	"fmt"
	"time"
)

// EnterFrame switches p into the frame matching loc and returns a release
// function that switches back to the top-level document. Callers defer the
// release immediately:
//
//	release, err := browser.EnterFrame(ctx, page, frameLoc, 10*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer release()
//
// On error the page is already back at the top level and no release is needed.
func EnterFrame(ctx context.Context, p Page, loc Locator, timeout time.Duration) (release func(), err error) {
	if err := p.SwitchToFrame(ctx, loc, timeout); err != nil {
		p.SwitchToTop()
		return func() {}, fmt.Errorf("enter frame %s: %w", loc, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		p.SwitchToTop()
	}, nil
}
