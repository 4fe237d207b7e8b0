package aws

import (
	"context"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
)

// ListSnapshots returns the snapshots in region matching the tag filter.
// Only snapshots owned by the calling account are considered.
func (c *Client) ListSnapshots(ctx context.Context, region string, filter cloud.TagFilter) ([]cloud.SnapshotRecord, error) {
	var described []*ec2.Snapshot

	listOperation := func(innerCtx context.Context) error {
		described = described[:0]
		input := &ec2.DescribeSnapshotsInput{
			OwnerIds: aws.StringSlice([]string{"self"}),
			Filters:  ec2Filters(filter),
		}
		for {
			out, err := c.svc(region).DescribeSnapshotsWithContext(innerCtx, input)
			if err != nil {
				return err
			}
			described = append(described, out.Snapshots...)
			if out.NextToken == nil {
				break
			}
			input.NextToken = out.NextToken
		}
		return nil
	}

	if err := c.executeWithRetry(ctx, "ListSnapshots", listOperation); err != nil {
		return nil, providerError("ListSnapshots", err)
	}

	records := make([]cloud.SnapshotRecord, 0, len(described))
	for _, snap := range described {
		records = append(records, recordFromSnapshot(region, snap))
	}
	return records, nil
}

// CreateSnapshot snapshots the given volume, applying tags atomically at
// creation time. It returns as soon as the API accepts the request; EBS
// snapshots become consistent in the background.
func (c *Client) CreateSnapshot(ctx context.Context, region string, volumeID string, tags map[string]string) (cloud.SnapshotRecord, error) {
	var created *ec2.Snapshot

	createOperation := func(innerCtx context.Context) error {
		snap, err := c.svc(region).CreateSnapshotWithContext(innerCtx, &ec2.CreateSnapshotInput{
			VolumeId:    aws.String(volumeID),
			Description: aws.String("Created and managed by Shutter"),
			TagSpecifications: []*ec2.TagSpecification{{
				ResourceType: aws.String(ec2.ResourceTypeSnapshot),
				Tags:         ec2Tags(tags),
			}},
		})
		if err != nil {
			return err
		}
		created = snap
		return nil
	}

	if err := c.executeWithRetry(ctx, "CreateSnapshot", createOperation); err != nil {
		return cloud.SnapshotRecord{}, providerError("CreateSnapshot", err)
	}

	return recordFromSnapshot(region, created), nil
}

// DeleteSnapshot permanently removes a snapshot.
func (c *Client) DeleteSnapshot(ctx context.Context, region string, snapshotID string) error {
	deleteOperation := func(innerCtx context.Context) error {
		_, err := c.svc(region).DeleteSnapshotWithContext(innerCtx, &ec2.DeleteSnapshotInput{
			SnapshotId: aws.String(snapshotID),
		})
		return err
	}

	if err := c.executeWithRetry(ctx, "DeleteSnapshot", deleteOperation); err != nil {
		return providerError("DeleteSnapshot", err)
	}
	return nil
}

// CopySnapshot replicates a snapshot into destRegion. The copy call is
// issued against the destination region, which is where EC2 wants it. A
// non-empty kmsKeyID requests an encrypted copy under that key; tags are
// applied atomically with the copy.
func (c *Client) CopySnapshot(ctx context.Context, srcRegion string, snapshotID string, destRegion string, kmsKeyID string, tags map[string]string) (cloud.SnapshotRecord, error) {
	var copiedID string

	copyOperation := func(innerCtx context.Context) error {
		input := &ec2.CopySnapshotInput{
			SourceRegion:     aws.String(srcRegion),
			SourceSnapshotId: aws.String(snapshotID),
			Description:      aws.String("Offsite copy created and managed by Shutter"),
			TagSpecifications: []*ec2.TagSpecification{{
				ResourceType: aws.String(ec2.ResourceTypeSnapshot),
				Tags:         ec2Tags(tags),
			}},
		}
		if kmsKeyID != "" {
			input.Encrypted = aws.Bool(true)
			input.KmsKeyId = aws.String(kmsKeyID)
		}

		out, err := c.svc(destRegion).CopySnapshotWithContext(innerCtx, input)
		if err != nil {
			return err
		}
		copiedID = aws.StringValue(out.SnapshotId)
		return nil
	}

	if err := c.executeWithRetry(ctx, "CopySnapshot", copyOperation); err != nil {
		return cloud.SnapshotRecord{}, providerError("CopySnapshot", err)
	}

	// CopySnapshot only returns the new id; describe it to get the record
	// the retention planner will later order by.
	var described []*ec2.Snapshot
	describeOperation := func(innerCtx context.Context) error {
		out, err := c.svc(destRegion).DescribeSnapshotsWithContext(innerCtx, &ec2.DescribeSnapshotsInput{
			SnapshotIds: aws.StringSlice([]string{copiedID}),
		})
		if err != nil {
			return err
		}
		described = out.Snapshots
		return nil
	}

	if err := c.executeWithRetry(ctx, "DescribeCopiedSnapshot", describeOperation); err != nil || len(described) == 0 {
		// The copy itself succeeded; fall back to a minimal record rather
		// than reporting the replication as failed.
		return cloud.SnapshotRecord{
			ID:        copiedID,
			Region:    destRegion,
			CreatedAt: time.Now().UTC(),
			Tags:      tags,
		}, nil
	}

	return recordFromSnapshot(destRegion, described[0]), nil
}

func recordFromSnapshot(region string, snap *ec2.Snapshot) cloud.SnapshotRecord {
	return cloud.SnapshotRecord{
		ID:             aws.StringValue(snap.SnapshotId),
		SourceVolumeID: aws.StringValue(snap.VolumeId),
		Region:         region,
		CreatedAt:      aws.TimeValue(snap.StartTime),
		Tags:           tagMap(snap.Tags),
	}
}
