package progress

import (
	"context"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
)

// Each calls fn for every event of sub until the stream ends or ctx is done.
// The subscription is closed on return.
func Each(ctx context.Context, sub *Subscription, fn func(model.Event)) {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			fn(event)
		}
	}
}

// Collect gathers every event of sub until the stream ends.
func Collect(sub *Subscription) []model.Event {
	res := []model.Event{}

	Each(context.Background(), sub, func(event model.Event) {
		res = append(res, event)
	})

	return res
}
