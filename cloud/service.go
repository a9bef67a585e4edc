package cloud

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/servicequotas"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/depinlaunch/web-backend/models"
)

// onDemandVcpuQuotaCode is the Service Quotas code for standard on-demand
// instance vCPUs.
const onDemandVcpuQuotaCode = "L-1216C47A"

// amiCatalog maps (os code, region) to the machine image used for launches.
// IDs drift over time; operators should verify them per region.
var amiCatalog = map[string]map[string]string{
	"al2023": {
		"us-east-1":      "ami-0230bd60aa48260c6",
		"us-east-2":      "ami-06d4b7182ac3480fa",
		"us-west-2":      "ami-093467ec28ae4fe03",
		"ap-northeast-1": "ami-012261b9035f8f938",
	},
	"ubuntu22": {
		"us-east-1":      "ami-0e2c8caa4b6378d8c",
		"us-east-2":      "ami-036841078a4b68e14",
		"us-west-2":      "ami-05d38da78ce859165",
		"ap-northeast-1": "ami-0a290015b99140cd1",
	},
	"ubuntu24": {
		"us-east-1":      "ami-04b70fa74e45c3917",
		"us-east-2":      "ami-09040d770ffe2224f",
		"us-west-2":      "ami-0cf2b4e024cdb6960",
		"ap-northeast-1": "ami-0162fe8bfebb6ea16",
	},
}

// ResolveAMI returns the image ID for an OS code and region.
func ResolveAMI(osCode, region string) (string, error) {
	images, ok := amiCatalog[osCode]
	if !ok {
		return "", fmt.Errorf("unsupported OS %q", osCode)
	}
	ami, ok := images[region]
	if !ok {
		return "", fmt.Errorf("region %s not supported or AMI not defined", region)
	}
	return ami, nil
}

// LaunchSpec describes one instance launch.
type LaunchSpec struct {
	Region       string
	InstanceType string
	OSCode       string // al2023 | ubuntu22 | ubuntu24
	VolumeSizeGB int32
	VolumeType   string // gp3 | gp2 | io1 | standard
	NameTag      string
}

// Launched is the outcome of a successful launch. PrivateKey is the
// generated key pair's PEM body; it is returned once and never stored by
// this package.
type Launched struct {
	InstanceID string
	PublicIP   string
	KeyName    string
	PrivateKey string
}

// HealthReport is the mapped outcome of a credential health check.
type HealthReport struct {
	Status  models.CredentialStatus
	Message string
}

// Capacity reports a credential's vCPU headroom in one region.
type Capacity struct {
	Limit     int
	Used      int
	Available int
}

// ListInstances fetches the full live inventory for one (credential, region)
// pair: all instances, any state.
func (s *Service) ListInstances(ctx context.Context, keys Keys, region string) ([]LiveInstance, error) {
	client, err := s.ec2Client(ctx, keys, region, s.apiTimeout)
	if err != nil {
		return nil, err
	}

	var out []LiveInstance
	var nextToken *string
	for {
		page, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				live := LiveInstance{
					ID:           strOrEmpty(inst.InstanceId),
					PublicIP:     strOrEmpty(inst.PublicIpAddress),
					InstanceType: string(inst.InstanceType),
				}
				if inst.State != nil {
					live.State = string(inst.State.Name)
				}
				if inst.LaunchTime != nil {
					live.LaunchTime = *inst.LaunchTime
				}
				out = append(out, live)
			}
		}
		if page.NextToken == nil {
			break
		}
		nextToken = page.NextToken
	}
	return out, nil
}

// DescribeStatuses returns the current lifecycle state for a batch of
// instance IDs in one region.
func (s *Service) DescribeStatuses(ctx context.Context, keys Keys, region string, instanceIDs []string) (map[string]string, error) {
	if len(instanceIDs) == 0 {
		return map[string]string{}, nil
	}
	client, err := s.ec2Client(ctx, keys, region, s.apiTimeout)
	if err != nil {
		return nil, err
	}

	result, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: instanceIDs,
	})
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]string, len(instanceIDs))
	for _, res := range result.Reservations {
		for _, inst := range res.Instances {
			if inst.InstanceId != nil && inst.State != nil {
				statuses[*inst.InstanceId] = string(inst.State.Name)
			}
		}
	}
	return statuses, nil
}

// Launch creates a key pair, starts one instance with it, waits for the
// running state and returns the public address plus the key material.
func (s *Service) Launch(ctx context.Context, keys Keys, spec LaunchSpec) (*Launched, error) {
	ami, err := ResolveAMI(spec.OSCode, spec.Region)
	if err != nil {
		return nil, err
	}

	// Launches outlive the short API timeout: waiter polling included.
	client, err := s.ec2Client(ctx, keys, spec.Region, 3*time.Minute)
	if err != nil {
		return nil, err
	}

	keyName := "depin-" + uuid.NewString()[:8]
	keyPair, err := client.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{
		KeyName: awssdk.String(keyName),
		KeyType: ec2types.KeyTypeRsa,
	})
	if err != nil {
		return nil, fmt.Errorf("create key pair: %w", err)
	}

	nameTag := spec.NameTag
	if nameTag == "" {
		nameTag = "depin-worker"
	}

	run, err := client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:      awssdk.String(ami),
		InstanceType: ec2types.InstanceType(spec.InstanceType),
		KeyName:      awssdk.String(keyName),
		MinCount:     awssdk.Int32(1),
		MaxCount:     awssdk.Int32(1),
		NetworkInterfaces: []ec2types.InstanceNetworkInterfaceSpecification{{
			DeviceIndex:              awssdk.Int32(0),
			AssociatePublicIpAddress: awssdk.Bool(true),
		}},
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{{
			DeviceName: awssdk.String("/dev/xvda"),
			Ebs: &ec2types.EbsBlockDevice{
				VolumeSize:          awssdk.Int32(spec.VolumeSizeGB),
				VolumeType:          ec2types.VolumeType(spec.VolumeType),
				DeleteOnTermination: awssdk.Bool(true),
			},
		}},
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags: []ec2types.Tag{
				{Key: awssdk.String("Name"), Value: awssdk.String(nameTag)},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("run instances: %w", err)
	}
	if len(run.Instances) == 0 || run.Instances[0].InstanceId == nil {
		return nil, errors.New("provider returned no instance")
	}
	instanceID := *run.Instances[0].InstanceId

	waiter := ec2.NewInstanceRunningWaiter(client)
	describeInput := &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}
	if err := waiter.Wait(ctx, describeInput, 3*time.Minute); err != nil {
		log.Printf("Instance %s launched but did not reach running in time: %v", instanceID, err)
		return &Launched{
			InstanceID: instanceID,
			KeyName:    keyName,
			PrivateKey: strOrEmpty(keyPair.KeyMaterial),
		}, nil
	}

	desc, err := client.DescribeInstances(ctx, describeInput)
	publicIP := ""
	if err == nil && len(desc.Reservations) > 0 && len(desc.Reservations[0].Instances) > 0 {
		publicIP = strOrEmpty(desc.Reservations[0].Instances[0].PublicIpAddress)
	}

	return &Launched{
		InstanceID: instanceID,
		PublicIP:   publicIP,
		KeyName:    keyName,
		PrivateKey: strOrEmpty(keyPair.KeyMaterial),
	}, nil
}

// Terminate requests termination of one instance.
func (s *Service) Terminate(ctx context.Context, keys Keys, region, instanceID string) error {
	client, err := s.ec2Client(ctx, keys, region, s.apiTimeout)
	if err != nil {
		return err
	}
	_, err = client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	return err
}

// suspendedCodes are provider error codes meaning the account itself is
// blocked or under verification, as opposed to a transient or key error.
var suspendedCodes = map[string]bool{
	"AuthFailure":         true,
	"AccountProblem":      true,
	"PendingVerification": true,
	"OptInRequired":       true,
	"Blocked":             true,
}

// CheckAccountHealth issues a minimal read call and maps the outcome into
// the credential health taxonomy: active, suspended or error.
func (s *Service) CheckAccountHealth(ctx context.Context, keys Keys, region string) HealthReport {
	client, err := s.ec2Client(ctx, keys, region, s.apiTimeout)
	if err != nil {
		return HealthReport{Status: models.CredentialError, Message: err.Error()}
	}

	_, err = client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		MaxResults: awssdk.Int32(5),
	})
	if err == nil {
		return HealthReport{Status: models.CredentialActive, Message: "Account OK"}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if suspendedCodes[apiErr.ErrorCode()] {
			return HealthReport{
				Status:  models.CredentialSuspended,
				Message: fmt.Sprintf("Account suspended (%s): %s", apiErr.ErrorCode(), apiErr.ErrorMessage()),
			}
		}
		return HealthReport{
			Status:  models.CredentialError,
			Message: fmt.Sprintf("API error (%s): %s", apiErr.ErrorCode(), apiErr.ErrorMessage()),
		}
	}
	return HealthReport{Status: models.CredentialError, Message: err.Error()}
}

// GetVcpuQuota reads the standard on-demand vCPU limit for one region.
func (s *Service) GetVcpuQuota(ctx context.Context, keys Keys, region string) (int, error) {
	client, err := s.quotasClient(ctx, keys, region)
	if err != nil {
		return 0, err
	}
	out, err := client.GetServiceQuota(ctx, &servicequotas.GetServiceQuotaInput{
		ServiceCode: awssdk.String("ec2"),
		QuotaCode:   awssdk.String(onDemandVcpuQuotaCode),
	})
	if err != nil {
		return 0, err
	}
	if out.Quota == nil || out.Quota.Value == nil {
		return 0, errors.New("quota value missing")
	}
	return int(*out.Quota.Value), nil
}

// HasRunningInstances is a light check used when the record store reports
// zero usage but we want to rule out unrecorded machines.
func (s *Service) HasRunningInstances(ctx context.Context, keys Keys, region string) (bool, error) {
	client, err := s.ec2Client(ctx, keys, region, s.apiTimeout)
	if err != nil {
		return false, err
	}
	out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		MaxResults: awssdk.Int32(5),
		Filters: []ec2types.Filter{{
			Name:   awssdk.String("instance-state-name"),
			Values: []string{models.StatusRunning},
		}},
	})
	if err != nil {
		return false, err
	}
	for _, res := range out.Reservations {
		if len(res.Instances) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// CheckCapacity compares the region's vCPU quota against live usage summed
// from running instances' CPU options.
func (s *Service) CheckCapacity(ctx context.Context, keys Keys, region string) (Capacity, error) {
	limit, err := s.GetVcpuQuota(ctx, keys, region)
	if err != nil {
		return Capacity{}, err
	}

	client, err := s.ec2Client(ctx, keys, region, s.apiTimeout)
	if err != nil {
		return Capacity{}, err
	}

	used := 0
	var nextToken *string
	for {
		page, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			NextToken: nextToken,
			Filters: []ec2types.Filter{{
				Name:   awssdk.String("instance-state-name"),
				Values: []string{models.StatusPending, models.StatusRunning},
			}},
		})
		if err != nil {
			return Capacity{}, err
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				if inst.CpuOptions != nil && inst.CpuOptions.CoreCount != nil && inst.CpuOptions.ThreadsPerCore != nil {
					used += int(*inst.CpuOptions.CoreCount) * int(*inst.CpuOptions.ThreadsPerCore)
				} else {
					used++
				}
			}
		}
		if page.NextToken == nil {
			break
		}
		nextToken = page.NextToken
	}

	return Capacity{Limit: limit, Used: used, Available: limit - used}, nil
}
