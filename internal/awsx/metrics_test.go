package awsx

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetrics_CountFulfillment(t *testing.T) {
	mock := &mockCloudWatch{}
	m := NewMetrics(mock, "GiftRelay")

	m.CountFulfillment(context.Background(), "delivered")

	if len(mock.inputs) != 1 {
		t.Fatalf("expected 1 put, got %d", len(mock.inputs))
	}
	in := mock.inputs[0]
	if *in.Namespace != "GiftRelay" {
		t.Fatalf("wrong namespace: %s", *in.Namespace)
	}
	datum := in.MetricData[0]
	if *datum.MetricName != "Fulfillment" || *datum.Value != 1 {
		t.Fatalf("wrong datum: %+v", datum)
	}
	if *datum.Dimensions[0].Value != "delivered" {
		t.Fatalf("wrong outcome dimension: %+v", datum.Dimensions)
	}
}
