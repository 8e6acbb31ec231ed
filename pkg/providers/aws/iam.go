package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/Sternrassler/config-collector/pkg/fetcher"
	"github.com/Sternrassler/config-collector/pkg/pagination"
)

// User is the stored form of an IAM user.
type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Arn              string     `json:"arn"`
	Path             string     `json:"path"`
	CreateDate       *time.Time `json:"create_date,omitempty"`
	PasswordLastUsed *time.Time `json:"password_last_used,omitempty"`
	AttachedPolicies []string   `json:"attached_policies"`
}

func (p *provider) listUsers(ctx context.Context, d fetcher.Descriptor) ([]any, error) {
	input := &iam.ListUsersInput{}
	if prefix, ok := d.Params["path_prefix"].(string); ok {
		input.PathPrefix = awssdk.String(prefix)
	}

	pager := iam.NewListUsersPaginator(p.clients.IAM, input)
	users, err := pagination.Collect[*iam.ListUsersOutput, *iam.Options](ctx, pager,
		func(out *iam.ListUsersOutput) []types.User { return out.Users })
	return toAny(users), err
}

// parseUser adds the user's attached managed policies.
func (p *provider) parseUser(ctx context.Context, kind string, payload any) error {
	raw, err := payloadAs[types.User](kind, payload)
	if err != nil {
		return err
	}

	user := User{
		ID:               awssdk.ToString(raw.UserId),
		Name:             awssdk.ToString(raw.UserName),
		Arn:              awssdk.ToString(raw.Arn),
		Path:             awssdk.ToString(raw.Path),
		CreateDate:       raw.CreateDate,
		PasswordLastUsed: raw.PasswordLastUsed,
		AttachedPolicies: []string{},
	}
	if user.ID == "" {
		return fmt.Errorf("%s: user without id", kind)
	}

	pager := iam.NewListAttachedUserPoliciesPaginator(p.clients.IAM, &iam.ListAttachedUserPoliciesInput{
		UserName: raw.UserName,
	})
	policies, err := pagination.Collect[*iam.ListAttachedUserPoliciesOutput, *iam.Options](ctx, pager,
		func(out *iam.ListAttachedUserPoliciesOutput) []types.AttachedPolicy { return out.AttachedPolicies })
	if err != nil {
		return fmt.Errorf("list policies of user %s: %w", user.Name, err)
	}
	for _, policy := range policies {
		user.AttachedPolicies = append(user.AttachedPolicies, awssdk.ToString(policy.PolicyArn))
	}

	return p.put(ctx, kind, user.ID, user)
}
