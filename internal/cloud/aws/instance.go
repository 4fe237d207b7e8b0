package aws

import (
	"context"
	"strings"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
)

// ListInstances returns the instances in region matching the tag filter.
// Results are paginated by the API; all pages are drained before returning.
func (c *Client) ListInstances(ctx context.Context, region string, filter cloud.TagFilter) ([]cloud.InstanceDescriptor, error) {
	var described []*ec2.Instance

	listOperation := func(innerCtx context.Context) error {
		described = described[:0]
		input := &ec2.DescribeInstancesInput{
			Filters: ec2Filters(filter),
		}
		for {
			out, err := c.svc(region).DescribeInstancesWithContext(innerCtx, input)
			if err != nil {
				return err
			}
			for _, res := range out.Reservations {
				described = append(described, res.Instances...)
			}
			if out.NextToken == nil {
				break
			}
			input.NextToken = out.NextToken
		}
		return nil
	}

	if err := c.executeWithRetry(ctx, "ListInstances", listOperation); err != nil {
		return nil, providerError("ListInstances", err)
	}

	instances := make([]cloud.InstanceDescriptor, 0, len(described))
	for _, inst := range described {
		instances = append(instances, descriptorFromInstance(region, inst))
	}
	return instances, nil
}

// FindInstance resolves an instance by id or, failing the id shape, by its
// Name tag. Returns the zero descriptor and false when nothing matches.
func (c *Client) FindInstance(ctx context.Context, region string, idOrName string) (cloud.InstanceDescriptor, bool, error) {
	filterName := "tag:Name"
	if strings.HasPrefix(idOrName, "i-") {
		filterName = "instance-id"
	}

	var described []*ec2.Instance

	findOperation := func(innerCtx context.Context) error {
		out, err := c.svc(region).DescribeInstancesWithContext(innerCtx, &ec2.DescribeInstancesInput{
			Filters: []*ec2.Filter{{
				Name:   aws.String(filterName),
				Values: aws.StringSlice([]string{idOrName}),
			}},
		})
		if err != nil {
			return err
		}
		described = described[:0]
		for _, res := range out.Reservations {
			described = append(described, res.Instances...)
		}
		return nil
	}

	if err := c.executeWithRetry(ctx, "FindInstance", findOperation); err != nil {
		return cloud.InstanceDescriptor{}, false, providerError("FindInstance", err)
	}
	if len(described) == 0 {
		return cloud.InstanceDescriptor{}, false, nil
	}
	return descriptorFromInstance(region, described[0]), true, nil
}

// TagResource merges tags onto an existing instance or snapshot.
// EC2 CreateTags overwrites per key and leaves unrelated tags untouched.
func (c *Client) TagResource(ctx context.Context, region string, resourceID string, tags map[string]string) error {
	tagOperation := func(innerCtx context.Context) error {
		_, err := c.svc(region).CreateTagsWithContext(innerCtx, &ec2.CreateTagsInput{
			Resources: aws.StringSlice([]string{resourceID}),
			Tags:      ec2Tags(tags),
		})
		return err
	}

	if err := c.executeWithRetry(ctx, "TagResource", tagOperation); err != nil {
		return providerError("TagResource", err)
	}
	return nil
}

// descriptorFromInstance flattens an EC2 instance into the provider-neutral
// descriptor. RootDeviceID is the volume backing the root device mapping.
func descriptorFromInstance(region string, inst *ec2.Instance) cloud.InstanceDescriptor {
	d := cloud.InstanceDescriptor{
		ID:            aws.StringValue(inst.InstanceId),
		Region:        region,
		DeviceVolumes: make(map[string]string, len(inst.BlockDeviceMappings)),
		Tags:          tagMap(inst.Tags),
	}
	d.Name = d.Tags["Name"]

	rootDevice := aws.StringValue(inst.RootDeviceName)
	for _, mapping := range inst.BlockDeviceMappings {
		if mapping.Ebs == nil {
			continue
		}
		device := aws.StringValue(mapping.DeviceName)
		volume := aws.StringValue(mapping.Ebs.VolumeId)
		d.DeviceVolumes[device] = volume
		if device == rootDevice {
			d.RootDeviceID = volume
		}
	}
	return d
}

// ec2Filters translates a tag filter into API filters. An empty value
// matches on key presence only.
func ec2Filters(filter cloud.TagFilter) []*ec2.Filter {
	filters := make([]*ec2.Filter, 0, len(filter))
	for k, v := range filter {
		if v == "" {
			filters = append(filters, &ec2.Filter{
				Name:   aws.String("tag-key"),
				Values: aws.StringSlice([]string{k}),
			})
			continue
		}
		filters = append(filters, &ec2.Filter{
			Name:   aws.String("tag:" + k),
			Values: aws.StringSlice([]string{v}),
		})
	}
	return filters
}

func ec2Tags(tags map[string]string) []*ec2.Tag {
	out := make([]*ec2.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, &ec2.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}

func tagMap(tags []*ec2.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.StringValue(t.Key)] = aws.StringValue(t.Value)
	}
	return out
}
