package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/Sternrassler/config-collector/pkg/fetcher"
	"github.com/Sternrassler/config-collector/pkg/pagination"
)

// Instance is the stored form of an EC2 instance.
type Instance struct {
	ID             string            `json:"id"`
	Name           string            `json:"name,omitempty"`
	Region         string            `json:"region"`
	State          string            `json:"state"`
	InstanceType   string            `json:"instance_type"`
	VpcID          string            `json:"vpc_id,omitempty"`
	SubnetID       string            `json:"subnet_id,omitempty"`
	PrivateIP      string            `json:"private_ip,omitempty"`
	PublicIP       string            `json:"public_ip,omitempty"`
	SecurityGroups []string          `json:"security_groups,omitempty"`
	LaunchTime     *time.Time        `json:"launch_time,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
}

// listInstances flattens every reservation into its instances. The
// descriptor's "filters" param is a map of filter name to values.
func (p *provider) listInstances(ctx context.Context, d fetcher.Descriptor) ([]any, error) {
	input := &ec2.DescribeInstancesInput{}

	filters, err := filtersFromParams(d.Params)
	if err != nil {
		return nil, err
	}
	input.Filters = filters

	pager := ec2.NewDescribeInstancesPaginator(p.clients.EC2, input)
	instances, err := pagination.Collect[*ec2.DescribeInstancesOutput, *ec2.Options](ctx, pager,
		func(out *ec2.DescribeInstancesOutput) []types.Instance {
			var page []types.Instance
			for _, r := range out.Reservations {
				page = append(page, r.Instances...)
			}
			return page
		})
	return toAny(instances), err
}

func (p *provider) parseInstance(ctx context.Context, kind string, payload any) error {
	raw, err := payloadAs[types.Instance](kind, payload)
	if err != nil {
		return err
	}

	inst := Instance{
		ID:           awssdk.ToString(raw.InstanceId),
		Region:       p.clients.Region,
		InstanceType: string(raw.InstanceType),
		VpcID:        awssdk.ToString(raw.VpcId),
		SubnetID:     awssdk.ToString(raw.SubnetId),
		PrivateIP:    awssdk.ToString(raw.PrivateIpAddress),
		PublicIP:     awssdk.ToString(raw.PublicIpAddress),
		LaunchTime:   raw.LaunchTime,
	}
	if inst.ID == "" {
		return fmt.Errorf("%s: instance without id", kind)
	}
	if raw.State != nil {
		inst.State = string(raw.State.Name)
	}
	for _, sg := range raw.SecurityGroups {
		inst.SecurityGroups = append(inst.SecurityGroups, awssdk.ToString(sg.GroupId))
	}
	if len(raw.Tags) > 0 {
		inst.Tags = make(map[string]string, len(raw.Tags))
		for _, tag := range raw.Tags {
			inst.Tags[awssdk.ToString(tag.Key)] = awssdk.ToString(tag.Value)
		}
		inst.Name = inst.Tags["Name"]
	}

	return p.put(ctx, kind, inst.ID, inst)
}

func filtersFromParams(params map[string]any) ([]types.Filter, error) {
	raw, ok := params["filters"]
	if !ok {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("filters: want a map of name to values, got %T", raw)
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	filters := make([]types.Filter, 0, len(m))
	for _, name := range names {
		var values []string
		switch v := m[name].(type) {
		case string:
			values = []string{v}
		case []string:
			values = v
		case []any:
			for _, item := range v {
				values = append(values, fmt.Sprint(item))
			}
		default:
			return nil, fmt.Errorf("filter %s: unsupported value %T", name, v)
		}
		filters = append(filters, types.Filter{Name: awssdk.String(name), Values: values})
	}
	return filters, nil
}
