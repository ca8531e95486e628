// Package shard fans a DynamoDB Scan out over parallel segments.
package shard

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"
)

// MaxSegments is the largest TotalSegments DynamoDB accepts.
const MaxSegments = 1000000

// Segments clamps n to the range DynamoDB accepts. Zero or negative means a single
// sequential scan.
func Segments(n int) int {
	return min(max(n, 1), MaxSegments)
}

// Scan reads every page of input. With more than one segment the segments are scanned
// concurrently and their items are returned in segment order.
func Scan(ctx context.Context, client dynamodb.ScanAPIClient, input *dynamodb.ScanInput, segments int) ([]map[string]types.AttributeValue, error) {
	parts := make([][]map[string]types.AttributeValue, Segments(segments))
	err := each(ctx, client, input, len(parts), func(seg int, page *dynamodb.ScanOutput) {
		parts[seg] = append(parts[seg], page.Items...)
	})
	if err != nil {
		return nil, err
	}

	var items []map[string]types.AttributeValue
	for _, p := range parts {
		items = append(items, p...)
	}
	return items, nil
}

// Count sums the matching item count of every page of input.
func Count(ctx context.Context, client dynamodb.ScanAPIClient, input *dynamodb.ScanInput, segments int) (int, error) {
	counts := make([]int, Segments(segments))
	err := each(ctx, client, input, len(counts), func(seg int, page *dynamodb.ScanOutput) {
		counts[seg] += int(page.Count)
	})
	if err != nil {
		return 0, err
	}

	var total int
	for _, c := range counts {
		total += c
	}
	return total, nil
}

// each pages through every segment and hands each page to fn. fn is never called
// concurrently for the same segment.
func each(ctx context.Context, client dynamodb.ScanAPIClient, input *dynamodb.ScanInput, segments int, fn func(int, *dynamodb.ScanOutput)) error {
	if segments == 1 {
		return pages(ctx, client, input, func(page *dynamodb.ScanOutput) { fn(0, page) })
	}

	g, gctx := errgroup.WithContext(ctx)
	for seg := range segments {
		in := *input
		in.Segment = aws.Int32(int32(seg))
		in.TotalSegments = aws.Int32(int32(segments))
		g.Go(func() error {
			err := pages(gctx, client, &in, func(page *dynamodb.ScanOutput) { fn(seg, page) })
			if err != nil {
				return fmt.Errorf("segment %d: %w", seg, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func pages(ctx context.Context, client dynamodb.ScanAPIClient, input *dynamodb.ScanInput, fn func(*dynamodb.ScanOutput)) error {
	paginator := dynamodb.NewScanPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		fn(page)
	}
	return nil
}
