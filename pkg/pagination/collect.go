package pagination

import (
	"context"
	"fmt"
)

// Paginator is the shape of the AWS SDK v2 paginators, e.g.
// *ec2.DescribeInstancesPaginator with Output *ec2.DescribeInstancesOutput
// and Options *ec2.Options.
type Paginator[Output any, Options any] interface {
	HasMorePages() bool
	NextPage(context.Context, ...func(Options)) (Output, error)
}

// Collect drains p and flattens each page with extract. On error the items of
// the pages read so far are returned with it.
func Collect[Output any, Options any, T any](ctx context.Context, p Paginator[Output, Options], extract func(Output) []T) ([]T, error) {
	var (
		items []T
		page  int
	)
	for p.HasMorePages() {
		page++
		out, err := p.NextPage(ctx)
		if err != nil {
			return items, fmt.Errorf("page %d: %w", page, err)
		}
		items = append(items, extract(out)...)
	}
	return items, nil
}
