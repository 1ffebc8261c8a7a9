package main

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/mithaq/backend/matching"
)

type dataLoaderContextKey string

const dataLoaderKey dataLoaderContextKey = "dataloader"

// profileSource is the part of the store the loaders batch against.
type profileSource interface {
	LoadProfiles(ctx context.Context, ids []int) (map[int]*matching.Profile, error)
}

// DataLoaders holds the per-request loaders.
type DataLoaders struct {
	ProfileLoader *dataloader.Loader[int, *matching.Profile]
}

func NewDataLoaders(src profileSource) *DataLoaders {
	return &DataLoaders{
		ProfileLoader: dataloader.NewBatchedLoader(
			profileBatchFn(src),
			dataloader.WithWait[int, *matching.Profile](16*time.Millisecond),
		),
	}
}

func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// profileBatchFn resolves a batch of user ids with one query. Results line
// up with keys; ids without a profile get ErrProfileNotFound.
func profileBatchFn(src profileSource) dataloader.BatchFunc[int, *matching.Profile] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[*matching.Profile] {
		results := make([]*dataloader.Result[*matching.Profile], len(keys))

		found, err := src.LoadProfiles(ctx, keys)
		for i, key := range keys {
			switch p, ok := found[key]; {
			case err != nil:
				results[i] = &dataloader.Result[*matching.Profile]{Error: err}
			case !ok:
				results[i] = &dataloader.Result[*matching.Profile]{
					Error: fmt.Errorf("user %d: %w", key, ErrProfileNotFound),
				}
			default:
				results[i] = &dataloader.Result[*matching.Profile]{Data: p}
			}
		}
		return results
	}
}
