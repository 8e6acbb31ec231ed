// Package pagination collects every item of a paginated listing for the
// provider list operations.
//
// Two listing styles are supported:
//
// Page-numbered APIs announce the total in the X-Pages header of each page.
// Pager fetches page 1 to learn the total, then fetches the remaining pages
// in parallel with bounded concurrency:
//
//	pager := pagination.NewPager(pagination.DefaultConfig())
//	items, err := pager.FetchAll(ctx, "/v1/users", func(ctx context.Context, page int) ([]any, int, error) {
//		return fetchUsersPage(ctx, page)
//	})
//
// Token-based SDK paginators (HasMorePages / NextPage) are drained
// sequentially by Collect:
//
//	p := iam.NewListUsersPaginator(api, &iam.ListUsersInput{})
//	users, err := pagination.Collect[*iam.ListUsersOutput, *iam.Options](ctx, p,
//		func(out *iam.ListUsersOutput) []types.User { return out.Users })
//
// Both return the items gathered before a failure together with the error,
// in page order.
package pagination
